package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/betledger/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var setTimerCmd = &cobra.Command{
	Use:   "set-timer <market-id> <duration|time>",
	Short: "Set when an open market stops taking offers",
	Long: `Sets the close deadline of an open market. The deadline is either a
duration from now (90m, 2h) or an RFC 3339 time. A running server closes
the market once the deadline passes.`,
	Args: cobra.ExactArgs(2),
	RunE: runSetTimer,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(setTimerCmd)
}

func runSetTimer(cmd *cobra.Command, args []string) error {
	requester, err := participant(cmd)
	if err != nil {
		return err
	}

	marketID, err := parseID("market", args[0])
	if err != nil {
		return err
	}

	deadline, err := parseDeadline(args[1], time.Now())
	if err != nil {
		return err
	}

	return withLedger(cmd, func(ctx context.Context, ledger *app.Ledger) error {
		setErr := ledger.Markets.SetCloseDeadline(ctx, marketID, requester, deadline)
		if setErr != nil {
			return setErr
		}

		_, printErr := fmt.Fprintf(cmd.OutOrStdout(), "Market #%d closes at %s\n",
			marketID, deadline.UTC().Format(time.RFC3339))
		return printErr
	})
}
