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
		Use:   "topcharts",
		Short: "App Store top-chart metadata collector",
		Long: `topcharts walks a list of storefront categories, pulls the top-free
chart for each, looks up per-app metadata from the lookup API, and
writes one CSV table per category to the configured destination.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (defaults plus TOPCHARTS_* environment variables apply without one)")
	cmd.AddCommand(newCollectCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
