package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/masanjalab/doctor-mitambo/internal/cli"
	"github.com/masanjalab/doctor-mitambo/internal/common"
	"github.com/masanjalab/doctor-mitambo/internal/model"
)

func diagnoseCmd() *cobra.Command {
	var (
		category  string
		requester string
	)

	cmd := &cobra.Command{
		Use:   "diagnose <code-or-symptoms>",
		Short: "Diagnose a fault code or free-text symptom description",
		Long: `Diagnose answers a fault code from the curated catalog when it is known,
and otherwise asks the configured AI providers. Every successful diagnosis
debits the requester's token wallet; failed attempts are free.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()

			g, cleanup, err := buildGate(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer cleanup()

			query := model.DiagnosisQuery{
				RawInput: strings.Join(args, " "),
				Category: category,
			}

			result, err := g.Spend(cmd.Context(), requester, query)
			if err != nil {
				return renderSpendError(cmd, err)
			}

			cmd.Println(renderDiagnosis(result))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "equipment category hint (e.g. excavator, bulldozer)")
	cmd.Flags().StringVar(&requester, "requester", "default", "requester identity the wallet is keyed by")

	return cmd
}

// renderSpendError turns the recoverable error taxonomy into styled output.
// These are user-visible outcomes, not faults; anything else propagates.
func renderSpendError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, common.ErrInsufficientFunds):
		cmd.Println(cli.FormatWarning("Not enough tokens. Top up with: mitambo wallet topup <amount>"))
		return nil
	case errors.Is(err, common.ErrAllProvidersUnavailable):
		cmd.Println(cli.FormatError("No AI provider could answer right now. Known fault codes still work; try again later."))
		return nil
	case errors.Is(err, common.ErrMalformedResponse):
		cmd.Println(cli.FormatError("The AI provider answered, but the response was unusable. You were not charged."))
		return nil
	case errors.Is(err, common.ErrEmptyQuery):
		cmd.Println(cli.FormatWarning("Nothing to diagnose: enter a fault code or describe the symptoms."))
		return nil
	default:
		return err
	}
}

func renderDiagnosis(result model.DiagnosisResult) string {
	var b strings.Builder

	if result.Brand != "" {
		fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Brand:"), result.Brand)
	}
	if result.Problem != "" {
		fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Problem:"), result.Problem)
	}
	if result.Severity != nil {
		fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Severity:"),
			cli.SeverityStyle(*result.Severity).Render(string(*result.Severity)))
	}
	fmt.Fprintf(&b, "%s %s\n", cli.BoldStyle.Render("Fix:"), result.Fix)

	sourceIcon := cli.BookIcon
	if result.Source == model.SourceAIProvider {
		sourceIcon = cli.RobotIcon
	}
	fmt.Fprintf(&b, "\n%s", cli.SubtleStyle.Render(
		fmt.Sprintf("%s %s  ·  %s %d tokens charged", sourceIcon, result.Source, cli.TokenIcon, result.Cost)))

	return cli.RenderBox("Diagnosis", b.String())
}
