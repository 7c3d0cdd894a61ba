package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"lifelog/internal/config"
	"lifelog/internal/models"
)

func newMediaCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "List, show, or delete stored media",
	}
	cmd.AddCommand(
		newMediaListCmd(cfg, opts),
		newMediaShowCmd(cfg, opts),
		newMediaDeleteCmd(cfg, opts),
	)
	return cmd
}

func newMediaListCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	var category string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List media, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if category != "" && !models.IsValidCategory(models.MediaCategory(category)) {
				return fmt.Errorf("invalid category: %s", category)
			}
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.media.Media.List(cmd.Context(), nil)
			if err != nil {
				return err
			}
			items := make([]models.Media, 0, len(all))
			for _, m := range all {
				if category != "" && string(m.Category) != category {
					continue
				}
				items = append(items, m)
			}
			sort.Slice(items, func(i, j int) bool {
				if !items[i].Datetime.Equal(items[j].Datetime) {
					return items[i].Datetime.After(items[j].Datetime)
				}
				return items[i].Key < items[j].Key
			})
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}

			if opts.structured() {
				// Payloads are omitted from listings.
				for i := range items {
					items[i].Payload = nil
				}
				return writeStructured(items)
			}
			return writeMediaList(items)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only this category (text, image, audio)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries")
	return cmd
}

func newMediaShowCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	var payloadOut string

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show one media record and its action results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			m, ok, err := a.media.Media.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("media %q not found", args[0])
			}
			results, err := a.media.ResultsForMedia(ctx, m.Key)
			if err != nil {
				return err
			}

			if payloadOut != "" {
				if err := os.WriteFile(payloadOut, m.Payload, 0o600); err != nil {
					return fmt.Errorf("write payload: %w", err)
				}
			}

			if opts.structured() {
				return writeStructured(struct {
					Media   models.Media          `json:"media"`
					Results []models.ActionResult `json:"results"`
				}{Media: m, Results: results})
			}
			return writeMediaDetail(m, results)
		},
	}

	cmd.Flags().StringVar(&payloadOut, "payload-out", "", "write the raw payload to this file")
	return cmd
}

func newMediaDeleteCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete media records (action results and todos are kept)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, key := range args {
				if err := a.media.Media.Delete(ctx, key); err != nil {
					return err
				}
			}
			if opts.structured() {
				return writeStructured(map[string]any{"deleted": args})
			}
			return writePlain("deleted %d\n", len(args))
		},
	}
}
