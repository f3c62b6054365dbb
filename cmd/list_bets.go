package cmd

import (
	"context"

	"github.com/mselser95/betledger/internal/app"
	"github.com/mselser95/betledger/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var listBetsCmd = &cobra.Command{
	Use:   "list-bets <market-id>",
	Short: "List the offers on a market",
	Long:  `Lists a market's offers with their break-even odds. Only open offers are shown unless --status is given.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runListBets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listBetsCmd)
	listBetsCmd.Flags().StringP("status", "s", string(types.OfferOpen), "Offer status: open, accepted, cancelled")
}

func runListBets(cmd *cobra.Command, args []string) error {
	marketID, err := parseID("market", args[0])
	if err != nil {
		return err
	}

	status, _ := cmd.Flags().GetString("status")

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		// Surface a missing market instead of an empty list
		_, getErr := ledger.Markets.GetMarket(ctx, marketID)
		if getErr != nil {
			return getErr
		}

		offers, listErr := ledger.Offers.ListOffers(ctx, types.OfferFilter{
			MarketID: marketID,
			Status:   types.OfferStatus(status),
		})
		if listErr != nil {
			return listErr
		}

		return renderOffers(cmd.OutOrStdout(), offers)
	})
}
