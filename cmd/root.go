// Package cmd defines and implements the CLI commands for the guidewatch
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidewatch",
		Short: "Restaurant guide listing monitor",
		Long: `guidewatch tracks restaurant guide listings over time. It crawls the
paginated public listing to discover and ingest entries, and runs the
sequential lookup workflow for keys that only resolve through the guide's
search form. All traffic travels through a rotating Tor identity.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newLookupCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
