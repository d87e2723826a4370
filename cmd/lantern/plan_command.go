package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the derivative plan without generating anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := ctx.builder()
			if err != nil {
				return err
			}
			summary, err := builder.Plan(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				payload := struct {
					Documents int         `json:"documents"`
					Tasks     []planEntry `json:"tasks"`
					Assets    []planEntry `json:"assets"`
				}{Documents: summary.Documents}
				for _, task := range summary.Tasks {
					payload.Tasks = append(payload.Tasks, planEntry{
						MediaPath:   task.MediaPath,
						Profile:     task.Profile.Name,
						Destination: task.Destination,
					})
				}
				for _, asset := range summary.Assets {
					payload.Assets = append(payload.Assets, planEntry{MediaPath: asset.MediaPath})
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			if len(summary.Tasks) > 0 {
				rows := make([][]string, 0, len(summary.Tasks))
				for _, task := range summary.Tasks {
					rows = append(rows, []string{task.MediaPath, task.Profile.Name, task.Destination})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Media", "Profile", "Destination"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
			}
			if len(summary.Assets) > 0 {
				rows := make([][]string, 0, len(summary.Assets))
				for _, asset := range summary.Assets {
					rows = append(rows, []string{asset.MediaPath})
				}
				fmt.Fprintln(out, renderTable([]string{"Static asset"}, rows, []columnAlignment{alignLeft}))
			}
			fmt.Fprintf(out, "%d document(s), %d derivative task(s), %d static asset(s)\n",
				summary.Documents, len(summary.Tasks), len(summary.Assets))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the plan as JSON")
	return cmd
}

type planEntry struct {
	MediaPath   string `json:"media_path"`
	Profile     string `json:"profile,omitempty"`
	Destination string `json:"destination,omitempty"`
}
