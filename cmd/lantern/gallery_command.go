package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGalleryCommand(ctx *commandContext) *cobra.Command {
	galleryCmd := &cobra.Command{
		Use:   "gallery",
		Short: "Gallery sidecar utilities",
	}

	galleryCmd.AddCommand(newGalleryRefreshCommand(ctx))

	return galleryCmd
}

func newGalleryRefreshCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Regenerate every gallery sidecar and re-export datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := ctx.builder()
			if err != nil {
				return err
			}
			workspace, err := builder.RefreshGallery(cmd.Context(), nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Refreshed %d collection(s), %d image(s); wrote %d sidecar(s) and %d dataset file(s).\n",
				len(workspace.Collections), workspace.ImageCount(),
				len(workspace.CollectionWrites)+len(workspace.ImageWrites), len(workspace.DataWrites))
			for _, warning := range workspace.Warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			return nil
		},
	}
	return cmd
}
