package cmd

import (
	"context"
	"time"

	"github.com/mselser95/betledger/internal/app"
	"github.com/mselser95/betledger/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var listMarketsCmd = &cobra.Command{
	Use:   "list-markets",
	Short: "List markets, newest first",
	Args:  cobra.NoArgs,
	RunE:  runListMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(listMarketsCmd)
	listMarketsCmd.Flags().StringP("status", "s", "", "Only markets in this status: open, closed, resolved")
	listMarketsCmd.Flags().StringP("creator", "c", "", "Only markets created by this participant")
	listMarketsCmd.Flags().IntP("limit", "l", 20, "Maximum number of markets to list (0 for all)")
}

func runListMarkets(cmd *cobra.Command, args []string) error {
	// Get flags
	status, _ := cmd.Flags().GetString("status")
	creator, _ := cmd.Flags().GetString("creator")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := types.MarketFilter{
		Status:    types.MarketStatus(status),
		CreatorID: creator,
		Limit:     limit,
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		markets, err := ledger.Markets.ListMarkets(ctx, filter)
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(markets))
		for _, m := range markets {
			ids = append(ids, m.ID)
		}

		stats, err := ledger.Markets.ListMarketStats(ctx, ids)
		if err != nil {
			return err
		}

		return renderMarkets(cmd.OutOrStdout(), markets, stats, time.Now())
	})
}
