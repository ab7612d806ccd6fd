package commands

import (
	"context"

	"buildingsearch/internal/components/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	format     *string
	dbPath     *string
	dumpDir    *string
	noDelay    *bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	configPath = flags.String("config", "hcr.json5", "The config file, hcr.local.json5 next to it overrides it.")
	verbose = flags.BoolP("verbose", "v", false, "Log every exchange with the portal.")
	format = flags.StringP("format", "f", "csv", "Output format: csv, table or sqlite.")
	dbPath = flags.String("db", "results.db", "The database sqlite output is written to.")
	dumpDir = flags.String("dump", "", "Write every HTTP exchange to this directory.")
	noDelay = flags.Bool("no-delay", false, "Skip the pause between requests.")
}

var rootCmd = &cobra.Command{
	Use:   "hcr-cli",
	Short: "hcr-cli scrapes building registrations from the NY HCR building search portal.",
	Long: `hcr-cli scrapes building registrations from the NY HCR building search portal.

Every query drives its own portal session through the search form: pick
"search by zip code", select the county, submit the zip code and then page
through the results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("hcr-cli failed", err)
	}
}
