package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lifelog/internal/config"
	"lifelog/internal/format"
)

// outputOptions carries the global output flags to subcommands.
type outputOptions struct {
	json        bool
	yaml        bool
	logLevel    string
	metricsFile string
}

// structured reports whether a machine-readable format was requested.
func (o *outputOptions) structured() bool {
	return o.json || o.yaml
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &outputOptions{}

	cmd := &cobra.Command{
		Use:           "lifelog",
		Short:         "Lifelog ingests notes, photos, and voice memos and turns them into structured records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.json && opts.yaml {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			switch {
			case opts.yaml:
				outputFormatter = format.YAMLFormatter{}
			default:
				outputFormatter = format.JSONFormatter{}
			}

			warning, err := configureLoggerForCLI(opts.logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&opts.yaml, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "write LLM token counters to this file in Prometheus text format")

	cmd.AddCommand(
		newIngestCmd(cfg, opts),
		newProcessCmd(cfg, opts),
		newMediaCmd(cfg, opts),
		newTodoCmd(cfg, opts),
		newResultsCmd(cfg, opts),
		newEmbedCmd(cfg, opts),
		newConfigCmd(cfg, opts),
		newMigrateCmd(cfg, opts),
	)

	return cmd
}
