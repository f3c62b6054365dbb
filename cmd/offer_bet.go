package cmd

import (
	"context"
	"fmt"

	"github.com/mselser95/betledger/internal/app"
	"github.com/mselser95/betledger/internal/matching"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var offerBetCmd = &cobra.Command{
	Use:   "offer-bet <market-id> <outcome> <risk> <to-win>",
	Short: "Offer to risk an amount on an outcome to win another",
	Long: `Posts an open offer. You risk <risk> on <outcome>; whoever accepts
risks <to-win> against it. A <to-win> of 0 is a free bet for the acceptor.

Example:
  betledger offer-bet --as alice 1 Yes 10 20 --target bob`,
	Args: cobra.ExactArgs(4),
	RunE: runOfferBet,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(offerBetCmd)
	offerBetCmd.Flags().StringP("target", "t", "", "Only this participant may accept")
}

func runOfferBet(cmd *cobra.Command, args []string) error {
	bettor, err := participant(cmd)
	if err != nil {
		return err
	}

	marketID, err := parseID("market", args[0])
	if err != nil {
		return err
	}

	risk, err := parseAmount("risk", args[2])
	if err != nil {
		return err
	}

	ask, err := parseAmount("to-win amount", args[3])
	if err != nil {
		return err
	}

	target, _ := cmd.Flags().GetString("target")

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		offer, offerErr := ledger.Offers.CreateOffer(ctx, matching.OfferRequest{
			MarketID:    marketID,
			Bettor:      bettor,
			Outcome:     args[1],
			OfferAmount: risk,
			AskAmount:   ask,
			Target:      target,
		})
		if offerErr != nil {
			return offerErr
		}

		_, printErr := fmt.Fprintf(cmd.OutOrStdout(), "Posted bet #%d: %s risks %s on %q to win %s (break-even %s)\n",
			offer.ID, offer.BettorID, money(offer.OfferAmount), offer.Outcome, money(offer.AskAmount), breakEven(offer))
		return printErr
	})
}
