package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/masanjalab/doctor-mitambo/internal/cli"
	"github.com/masanjalab/doctor-mitambo/internal/kb"
)

func codesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List the curated fault-code catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := kb.Load(viper.GetString("kb.catalog_path"))
			if err != nil {
				return fmt.Errorf("failed to load fault-code catalog: %w", err)
			}

			cmd.Println(cli.FormatTitle(fmt.Sprintf("Fault codes (%d)", base.Size())))
			for _, entry := range base.Codes() {
				cmd.Printf("%s  %s  %s  %s %s\n",
					cli.BoldStyle.Render(entry.Code),
					cli.SubtleStyle.Render(entry.Brand),
					cli.SeverityStyle(entry.Severity).Render(string(entry.Severity)),
					entry.Problem,
					cli.SubtleStyle.Render(fmt.Sprintf("(%d tokens)", entry.Cost)))
			}
			return nil
		},
	}
}
