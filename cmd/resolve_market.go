package cmd

import (
	"context"

	"github.com/mselser95/betledger/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var resolveMarketCmd = &cobra.Command{
	Use:   "resolve-market <market-id> <winning-outcome>",
	Short: "Declare the winning outcome and settle every matched bet",
	Long: `Resolves a market. Only its creator or resolver may do this. Every
accepted bet settles between its two parties and every open offer is
cancelled, all in one step.`,
	Args: cobra.ExactArgs(2),
	RunE: runResolveMarket,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(resolveMarketCmd)
}

func runResolveMarket(cmd *cobra.Command, args []string) error {
	requester, err := participant(cmd)
	if err != nil {
		return err
	}

	marketID, err := parseID("market", args[0])
	if err != nil {
		return err
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		result, resolveErr := ledger.Markets.ResolveMarket(ctx, marketID, requester, args[1])
		if resolveErr != nil {
			return resolveErr
		}

		return renderResolution(cmd.OutOrStdout(), result)
	})
}
