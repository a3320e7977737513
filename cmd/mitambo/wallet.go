package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/masanjalab/doctor-mitambo/internal/cli"
	"github.com/masanjalab/doctor-mitambo/internal/model"
)

func walletCmd() *cobra.Command {
	var requester string

	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the diagnosis token wallet",
	}
	cmd.PersistentFlags().StringVar(&requester, "requester", "default", "requester identity the wallet is keyed by")

	cmd.AddCommand(walletBalanceCmd(&requester))
	cmd.AddCommand(walletTopupCmd(&requester))
	cmd.AddCommand(walletHistoryCmd(&requester))

	return cmd
}

func walletBalanceCmd(requester *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current token balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			wallet, err := store.GetOrCreate(cmd.Context(), *requester)
			if err != nil {
				return err
			}

			cmd.Println(cli.FormatTitle("Wallet"))
			cmd.Printf("%s %s %d tokens\n", cli.TokenIcon, cli.BoldStyle.Render("Balance:"), wallet.Balance)
			return nil
		},
	}
}

func walletTopupCmd(requester *string) *cobra.Command {
	return &cobra.Command{
		Use:   "topup <amount>",
		Short: "Add tokens to the wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer: %s", args[0])
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if _, err := store.GetOrCreate(cmd.Context(), *requester); err != nil {
				return err
			}
			if err := store.Credit(cmd.Context(), *requester, amount, "Token top-up"); err != nil {
				return err
			}

			balance, err := store.Balance(cmd.Context(), *requester)
			if err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Added %d tokens. New balance: %d", amount, balance)))
			return nil
		},
	}
}

func walletHistoryCmd(requester *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the wallet ledger, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.History(cmd.Context(), *requester, limit)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				cmd.Println(cli.SubtleStyle.Render("No transactions yet."))
				return nil
			}

			cmd.Println(cli.FormatTitle("Ledger"))
			for _, entry := range entries {
				sign := "-"
				style := cli.ErrorStyle
				if entry.Type == model.LedgerCredit {
					sign = "+"
					style = cli.SuccessStyle
				}
				cmd.Printf("%s  %s  %s\n",
					cli.SubtleStyle.Render(entry.CreatedAt.Local().Format("2006-01-02 15:04")),
					style.Render(fmt.Sprintf("%s%d", sign, entry.Amount)),
					entry.Description)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries to show")
	return cmd
}
