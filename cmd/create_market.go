package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mselser95/betledger/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var createMarketCmd = &cobra.Command{
	Use:   "create-market <title> <outcome> <outcome> [outcome...]",
	Short: "Create a market with two or more named outcomes",
	Long: `Creates an open market. The creator is also its initial resolver.

Example:
  betledger create-market --as alice "Will it rain Saturday?" Yes No`,
	Args: cobra.MinimumNArgs(3),
	RunE: runCreateMarket,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(createMarketCmd)
}

func runCreateMarket(cmd *cobra.Command, args []string) error {
	creator, err := participant(cmd)
	if err != nil {
		return err
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		market, createErr := ledger.Markets.CreateMarket(ctx, args[0], args[1:], creator)
		if createErr != nil {
			return createErr
		}

		_, printErr := fmt.Fprintf(cmd.OutOrStdout(), "Created market #%d %q with outcomes %s\n",
			market.ID, market.Title, strings.Join(market.Outcomes, ", "))
		return printErr
	})
}
