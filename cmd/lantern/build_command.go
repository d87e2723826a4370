package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lantern/internal/build"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var refreshGallery bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate derivatives, gallery sidecars, and the staged output tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := ctx.builder()
			if err != nil {
				return err
			}
			report, err := builder.Run(cmd.Context(), build.Options{
				Force:          force,
				RefreshGallery: refreshGallery,
			})
			if err != nil {
				if errors.Is(err, build.ErrWorkspaceLocked) {
					return errors.New("another lantern build is already running in this workspace")
				}
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Clear generated outputs before building")
	cmd.Flags().BoolVar(&refreshGallery, "refresh-gallery", false, "Regenerate gallery sidecars that already exist")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the build report as JSON")
	return cmd
}

func printReport(cmd *cobra.Command, report *build.Report) {
	out := cmd.OutOrStdout()

	changed := "none"
	if report.FirstRun {
		changed = "first run"
	} else if len(report.ChangedKeys) > 0 {
		changed = strings.Join(report.ChangedKeys, ", ")
	}

	rows := [][]string{
		{"Project", report.ProjectName},
		{"Run", report.RunID},
		{"Changed inputs", changed},
		{"Documents", strconv.Itoa(report.Documents)},
		{"Derivatives", fmt.Sprintf("%d generated, %d reused, %d skipped", report.ProcessedTasks, report.ReusedTasks, report.SkippedTasks)},
		{"Static assets", fmt.Sprintf("%d copied, %d reused", report.CopiedAssets, report.ReusedAssets)},
		{"Pruned artifacts", strconv.Itoa(report.PrunedArtifacts)},
		{"Gallery", fmt.Sprintf("%d collections, %d images, %d sidecar writes", report.GalleryCollections, report.GalleryImages, report.GallerySidecarWrites)},
		{"Templates", fmt.Sprintf("%d staged, %d removed", report.StagedTemplates, report.RemovedTemplates)},
		{"Duration", report.Duration.Round(time.Millisecond).String()},
	}
	if stdoutIsTerminal() {
		fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
	} else {
		for _, row := range rows {
			fmt.Fprintf(out, "%s: %s\n", row[0], row[1])
		}
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintf(out, "\n%d warning(s):\n", len(report.Warnings))
		for _, warning := range report.Warnings {
			fmt.Fprintf(out, "  - %s\n", warning)
		}
	}
}
