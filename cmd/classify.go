package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/labmarket/pricewatch/internal/classify"
	"github.com/labmarket/pricewatch/internal/model"
)

var (
	classifyURL         string
	classifyTitle       string
	classifyDescription string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a search result as documentation or offer",
	RunE: func(cmd *cobra.Command, args []string) error {
		classifier := classify.New(cfg.Market.Domains)

		verdict := classifier.Classify(model.SearchResult{
			URL:         classifyURL,
			Title:       classifyTitle,
			Description: classifyDescription,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyURL, "url", "", "result URL (required)")
	classifyCmd.Flags().StringVar(&classifyTitle, "title", "", "result title")
	classifyCmd.Flags().StringVar(&classifyDescription, "description", "", "result snippet")
	_ = classifyCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(classifyCmd)
}
