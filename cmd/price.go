package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/labmarket/pricewatch/internal/model"
)

var (
	priceCondition string
	priceWait      bool
)

var priceCmd = &cobra.Command{
	Use:   "price <brand> <model> [category]",
	Short: "Look up price context for an equipment model",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		brand, mdl := args[0], args[1]
		category := ""
		if len(args) == 3 {
			category = args[2]
		}
		condition, _ := model.ParseCondition(priceCondition)

		if priceWait {
			// Scrape before answering instead of in the background.
			if err := env.Orchestrator.RefreshNow(ctx, brand, mdl, category); err != nil {
				zap.L().Warn("synchronous refresh failed, serving cache or estimate", zap.Error(err))
			}
		}

		pc, err := env.Orchestrator.PriceContext(ctx, brand, mdl, category, condition)
		if err != nil {
			return eris.Wrap(err, "price context")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pc)
	},
}

func init() {
	priceCmd.Flags().StringVar(&priceCondition, "condition", "", "condition emphasis: new, refurbished, or used")
	priceCmd.Flags().BoolVar(&priceWait, "wait", false, "run the marketplace scrape synchronously before answering")
	rootCmd.AddCommand(priceCmd)
}
