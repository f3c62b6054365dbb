package cmd

import (
	"context"
	"fmt"

	"github.com/mselser95/betledger/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var removeMarketsCmd = &cobra.Command{
	Use:   "remove-markets <market-id> [market-id...]",
	Short: "Permanently delete markets and everything on them (admins only)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemoveMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(removeMarketsCmd)
}

func runRemoveMarkets(cmd *cobra.Command, args []string) error {
	requester, err := participant(cmd)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, parseErr := parseID("market", arg)
		if parseErr != nil {
			return parseErr
		}
		ids = append(ids, id)
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		removed, removeErr := ledger.Markets.RemoveMarkets(ctx, ids, requester)
		if removeErr != nil {
			return removeErr
		}

		_, printErr := fmt.Fprintf(cmd.OutOrStdout(), "Removed %d of %d market(s)\n", removed, len(ids))
		return printErr
	})
}
