package main

import (
	"github.com/spf13/cobra"

	"github.com/masanjalab/doctor-mitambo/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply wallet database schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cmd.Println(cli.FormatSuccess("Wallet database schema is up to date."))
			return nil
		},
	}
}
