package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creatorcrawl",
		Short: "Harvest creator profiles into InfluxDB",
		Long: `creatorcrawl discovers every category of the listing site, walks each
category page by page, merges the creators it finds and writes them to
InfluxDB, the local snapshot database and a run report.

Without a subcommand a single crawl is run. When RUN_CRAWLER_AS_API=true is
set, the bare binary behaves like 'creatorcrawl serve' instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runRootCmd,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .creatorcrawl in current or home directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// runRootCmd mirrors the deployment switch of the service: API mode or a
// one-shot crawl.
func runRootCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, os.Getenv)
	if err != nil {
		return err
	}
	if cfg.RunAsAPI {
		return runServe(cmd, cfg, false)
	}
	return runCrawl(cmd, cfg)
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
