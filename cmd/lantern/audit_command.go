package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Cross-check document media references against the media tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := ctx.builder()
			if err != nil {
				return err
			}
			report, err := builder.Audit(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Referenced: %d, scanned: %d\n", report.ReferencedCount, report.ScannedCount)
			printAuditSection(cmd, "Missing sources", report.MissingReferences)
			printAuditSection(cmd, "Unresolved references", report.UnresolvedReferences)
			printAuditSection(cmd, "Orphan files", report.OrphanFiles)
			if report.Clean() {
				fmt.Fprintln(out, "Media references are consistent.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the audit report as JSON")
	return cmd
}

func printAuditSection(cmd *cobra.Command, title string, entries []string) {
	if len(entries) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d):\n", title, len(entries))
	for _, entry := range entries {
		fmt.Fprintf(out, "  - %s\n", entry)
	}
}
