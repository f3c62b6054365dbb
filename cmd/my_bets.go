package cmd

import (
	"context"

	"github.com/mselser95/betledger/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var myBetsCmd = &cobra.Command{
	Use:   "my-bets",
	Short: "Show your open offers and matched bets",
	Args:  cobra.NoArgs,
	RunE:  runMyBets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(myBetsCmd)
}

func runMyBets(cmd *cobra.Command, args []string) error {
	who, err := participant(cmd)
	if err != nil {
		return err
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		bets, betsErr := ledger.Offers.ParticipantBets(ctx, who)
		if betsErr != nil {
			return betsErr
		}

		return renderParticipantBets(cmd.OutOrStdout(), bets)
	})
}
