package commands

import (
	"buildingsearch/internal/query"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <county> <zip>",
	Short: "Writes every building registered in a zip code of a county.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := query.NewTarget(args[0], args[1])
		if err != nil {
			return err
		}
		return run(cmd, query.ActionScrape, []query.Target{target})
	},
}
