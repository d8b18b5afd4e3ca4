package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the price context cache",
}

var cacheExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Delete expired cache rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.DeleteExpired(ctx)
		if err != nil {
			return eris.Wrap(err, "delete expired")
		}

		zap.L().Info("expired cache rows deleted", zap.Int("rows", n))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheExpireCmd)
	rootCmd.AddCommand(cacheCmd)
}
