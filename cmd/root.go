package cmd

import (
	"os"

	"github.com/mselser95/betledger/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "betledger",
	Short: "Peer-to-peer wagering ledger",
	Long: `Peer-to-peer wagering ledger for small groups.

Participants create markets with named outcomes, post offers that risk an
amount to win an ask, accept each other's offers, and resolve markets so
every matched bet settles between its two parties.

Configuration is read from the environment and an optional .env file.
Commands that act on behalf of someone need --as (or BETLEDGER_PARTICIPANT).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().String("as", "", "Participant ID to act as (default $BETLEDGER_PARTICIPANT)")
}
