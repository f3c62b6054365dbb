package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mselser95/betledger/internal/events"
	"github.com/mselser95/betledger/pkg/config"
	"github.com/mselser95/betledger/pkg/websocket"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running server's ledger events",
	Long: `Connects to a ledger server's event stream and prints each event as it
happens. The connection is re-established with backoff if it drops; events
published while disconnected are not replayed.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("url", "ws://localhost:8080/api/events", "Event stream URL")
	watchCmd.Flags().Int64("market", 0, "Only show events for this market")
}

func runWatch(cmd *cobra.Command, args []string) error {
	feedURL, _ := cmd.Flags().GetString("url")
	marketID, _ := cmd.Flags().GetInt64("market")

	logger, err := config.NewCLILogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	follower, err := websocket.NewFollower(websocket.Config{
		URL:      feedURL,
		MarketID: marketID,
		Reconnect: websocket.ReconnectConfig{
			InitialDelay:      time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2,
			JitterPercent:     0.2,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	err = follower.Run(ctx, func(ev events.Event, connected bool) {
		if connected {
			_, _ = fmt.Fprintln(out, "-- connected, refresh any cached views --")
		}
		_, _ = fmt.Fprintln(out, formatEvent(ev))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func formatEvent(ev events.Event) string {
	var b strings.Builder
	b.WriteString(ev.At.Local().Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(string(ev.Type))

	if ev.MarketID != 0 {
		fmt.Fprintf(&b, " market #%d", ev.MarketID)
	}
	if ev.BetID != 0 {
		fmt.Fprintf(&b, " bet #%d", ev.BetID)
	}
	if ev.Actor != "" {
		fmt.Fprintf(&b, " by %s", ev.Actor)
	}
	if ev.Payload != nil {
		fmt.Fprintf(&b, " %v", ev.Payload)
	}

	return b.String()
}
