package cmd

import (
	"context"
	"fmt"

	"github.com/mselser95/betledger/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var acceptBetCmd = &cobra.Command{
	Use:   "accept-bet <bet-id>",
	Short: "Take the other side of an open offer",
	Args:  cobra.ExactArgs(1),
	RunE:  runAcceptBet,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(acceptBetCmd)
}

func runAcceptBet(cmd *cobra.Command, args []string) error {
	acceptor, err := participant(cmd)
	if err != nil {
		return err
	}

	betID, err := parseID("bet", args[0])
	if err != nil {
		return err
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		accepted, acceptErr := ledger.Offers.AcceptOffer(ctx, betID, acceptor)
		if acceptErr != nil {
			return acceptErr
		}

		_, printErr := fmt.Fprintf(cmd.OutOrStdout(), "%s accepted bet #%d\n", accepted.AcceptorID, accepted.BetID)
		return printErr
	})
}
