package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"lifelog/internal/config"
	"lifelog/internal/models"
	"lifelog/internal/store"
)

func newResultsCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect recorded action results",
	}
	cmd.AddCommand(newResultsListCmd(cfg, opts))
	return cmd
}

func newResultsListCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	var mediaKey string
	var actionType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List action results, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mediaKey != "" && actionType != "" {
				return fmt.Errorf("--media and --type are mutually exclusive")
			}
			var filter *store.Filter
			switch {
			case mediaKey != "":
				filter = store.Where("mediaKey", mediaKey)
			case actionType != "":
				parsed, err := models.ParseActionType(actionType)
				if err != nil {
					return err
				}
				filter = store.Where("actionType", parsed)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.media.ActionResults.List(ctx, filter)
			if err != nil {
				return err
			}
			sort.Slice(results, func(i, j int) bool {
				if !results[i].Created.Equal(results[j].Created) {
					return results[i].Created.Before(results[j].Created)
				}
				return results[i].Key < results[j].Key
			})
			if results == nil {
				results = []models.ActionResult{}
			}

			if opts.structured() {
				return writeStructured(results)
			}
			return writeResultList(results)
		},
	}

	cmd.Flags().StringVar(&mediaKey, "media", "", "only results for this media key")
	cmd.Flags().StringVar(&actionType, "type", "", "only results of this action type")
	return cmd
}
