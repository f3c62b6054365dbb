package cmd

import (
	"context"
	"fmt"

	"github.com/mselser95/betledger/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var setResolverCmd = &cobra.Command{
	Use:   "set-resolver <market-id> <participant>",
	Short: "Hand the right to resolve an open market to someone else",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetResolver,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(setResolverCmd)
}

func runSetResolver(cmd *cobra.Command, args []string) error {
	requester, err := participant(cmd)
	if err != nil {
		return err
	}

	marketID, err := parseID("market", args[0])
	if err != nil {
		return err
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		setErr := ledger.Markets.SetResolver(ctx, marketID, requester, args[1])
		if setErr != nil {
			return setErr
		}

		_, printErr := fmt.Fprintf(cmd.OutOrStdout(), "Market #%d is now resolved by %s\n", marketID, args[1])
		return printErr
	})
}
