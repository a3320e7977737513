package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/masanjalab/doctor-mitambo/internal/cli"
)

func nameplateCmd() *cobra.Command {
	var (
		imagePath string
		requester string
	)

	cmd := &cobra.Command{
		Use:   "nameplate --image <path>",
		Short: "Extract brand, model and serial from a nameplate photo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.Default()

			image, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("failed to read image %s: %w", imagePath, err)
			}

			g, cleanup, err := buildGate(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer cleanup()

			plate, err := g.SpendNameplate(cmd.Context(), requester, image)
			if err != nil {
				return renderSpendError(cmd, err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Brand:"), plate.Brand)
			fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Model:"), plate.Model)
			fmt.Fprintf(&b, "%s %s", cli.BoldStyle.Render("Serial:"), plate.Serial)

			cmd.Println(cli.RenderBox("Nameplate", b.String()))
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "path to the nameplate photo (jpeg)")
	cmd.Flags().StringVar(&requester, "requester", "default", "requester identity the wallet is keyed by")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}
