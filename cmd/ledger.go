package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mselser95/betledger/internal/app"
	"github.com/mselser95/betledger/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const commandTimeout = 30 * time.Second

// withLedger opens the configured ledger for the duration of fn.
func withLedger(cmd *cobra.Command, fn func(ctx context.Context, ledger *app.Ledger) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	// Load config
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewCLILogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ledger, err := app.OpenLedger(ctx, cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		closeErr := ledger.Close()
		if closeErr != nil {
			logger.Warn("ledger-close-failed", zap.Error(closeErr))
		}
	}()

	return fn(ctx, ledger)
}

// participant resolves who the command acts as.
func participant(cmd *cobra.Command) (string, error) {
	as, _ := cmd.Flags().GetString("as")
	if strings.TrimSpace(as) == "" {
		as = os.Getenv("BETLEDGER_PARTICIPANT")
	}

	as = strings.TrimSpace(as)
	if as == "" {
		return "", fmt.Errorf("participant required: pass --as or set BETLEDGER_PARTICIPANT")
	}

	return as, nil
}

func parseID(kind string, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

func parseAmount(name string, raw string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimPrefix(raw, "$"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return amount, nil
}

// parseDeadline accepts a duration from now ("90m", "2h") or an RFC 3339 time.
func parseDeadline(raw string, now time.Time) (time.Time, error) {
	d, err := time.ParseDuration(raw)
	if err == nil {
		return now.Add(d), nil
	}

	at, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return at, nil
	}

	return time.Time{}, fmt.Errorf("invalid deadline %q: want a duration like 90m or an RFC 3339 time", raw)
}
