package cmd

import (
	"context"

	"github.com/mselser95/betledger/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var explainBetCmd = &cobra.Command{
	Use:   "explain-bet <bet-id>",
	Short: "Show an offer's payoff for each outcome and its break-even odds",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplainBet,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(explainBetCmd)
}

func runExplainBet(cmd *cobra.Command, args []string) error {
	betID, err := parseID("bet", args[0])
	if err != nil {
		return err
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		explanation, explainErr := ledger.Offers.ExplainOffer(ctx, betID)
		if explainErr != nil {
			return explainErr
		}

		return renderExplanation(cmd.OutOrStdout(), explanation)
	})
}
