package main

import (
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"lifelog/internal/config"
	"lifelog/internal/llm"
)

func newEmbedCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	var dimensions int
	var model string

	cmd := &cobra.Command{
		Use:   "embed <name> <text...>",
		Short: "Compute an embedding vector for a piece of text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No store is needed, so skip openApp.
			a := &app{cfg: cfg, registry: prometheus.NewRegistry(), logger: slog.Default()}
			gw, err := a.gateway()
			if err != nil {
				return err
			}

			embOpts := &llm.EmbeddingOptions{Dimensions: dimensions, Model: model}
			if embOpts.Dimensions == 0 {
				embOpts.Dimensions = cfg.OpenAI.EmbeddingDimensions
			}
			if embOpts.Model == "" {
				embOpts.Model = cfg.OpenAI.EmbeddingModel
			}

			emb, err := gw.GetEmbeddings(cmd.Context(), args[0], strings.Join(args[1:], " "), embOpts)
			if err != nil {
				return err
			}
			if err := a.writeMetrics(opts.metricsFile); err != nil {
				return err
			}
			// Vectors have no plain rendering; JSON is the default here.
			return writeStructured(emb)
		},
	}

	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "vector size (default 1536)")
	cmd.Flags().StringVar(&model, "model", "", "embedding model (default text-embedding-3-small)")
	return cmd
}
