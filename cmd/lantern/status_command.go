package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lantern/internal/buildstate"
)

var statusKeys = []string{
	buildstate.KeyConfigFile,
	buildstate.KeyConfigValues,
	buildstate.KeyContent,
	buildstate.KeyMedia,
	buildstate.KeyArticleMedia,
	buildstate.KeyTemplates,
	buildstate.KeyGallery,
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which input groups changed since the last build",
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := ctx.builder()
			if err != nil {
				return err
			}
			summary, err := builder.Status()
			if err != nil {
				return err
			}
			if jsonOutput {
				payload := struct {
					FirstRun    bool     `json:"first_run"`
					ChangedKeys []string `json:"changed_keys"`
				}{FirstRun: summary.FirstRun, ChangedKeys: summary.ChangedKeys}
				if payload.ChangedKeys == nil {
					payload.ChangedKeys = []string{}
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			if summary.FirstRun {
				fmt.Fprintln(out, "No previous build recorded; the next build runs from scratch.")
				return nil
			}
			rows := make([][]string, 0, len(statusKeys))
			for _, key := range statusKeys {
				rows = append(rows, []string{key, yesNo(summary.Changed(key))})
			}
			fmt.Fprintln(out, renderTable([]string{"Input group", "Changed"}, rows, []columnAlignment{alignLeft, alignLeft}))
			if summary.HasChanges() {
				fmt.Fprintln(out, "Inputs changed; run `lantern build` to refresh outputs.")
			} else {
				fmt.Fprintln(out, "Everything is up to date.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}
