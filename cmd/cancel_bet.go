package cmd

import (
	"context"
	"fmt"

	"github.com/mselser95/betledger/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cancelBetCmd = &cobra.Command{
	Use:   "cancel-bet <bet-id>",
	Short: "Withdraw one of your open offers",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancelBet,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(cancelBetCmd)
}

func runCancelBet(cmd *cobra.Command, args []string) error {
	requester, err := participant(cmd)
	if err != nil {
		return err
	}

	betID, err := parseID("bet", args[0])
	if err != nil {
		return err
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		cancelErr := ledger.Offers.CancelOffer(ctx, betID, requester)
		if cancelErr != nil {
			return cancelErr
		}

		_, printErr := fmt.Fprintf(cmd.OutOrStdout(), "Cancelled bet #%d\n", betID)
		return printErr
	})
}
