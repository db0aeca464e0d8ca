package main

import (
	"os"

	"github.com/rohankatakam/gitbuddy/internal/config"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/output"
	"github.com/spf13/cobra"
)

var streakAddress string

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show the on-chain posting streak of an address",
	Long: `Read the streak contract's state for an address (default: streak.account).

A post counts toward the streak when it lands more than 24 hours after the
previous valid post; the streak resets after 48 hours without one.`,
	Args: cobra.NoArgs,
	RunE: runStreak,
}

func init() {
	streakCmd.Flags().StringVar(&streakAddress, "address", "", "address to look up (default: streak.account)")
}

func runStreak(cmd *cobra.Command, args []string) error {
	if err := validate(config.ValidationContextStreak); err != nil {
		return err
	}
	f, err := formatter()
	if err != nil {
		return err
	}

	var c closers
	defer c.Close()
	client, err := newStreakClient(&c, streakAddress)
	if err != nil {
		return err
	}
	address := client.Account()
	if address == "" {
		return apperrors.InvalidArgument("no address given: pass --address or set streak.account or streak.private_key")
	}

	state, err := client.UserState(cmd.Context(), address)
	if err != nil {
		return err
	}
	return f.FormatStreak(os.Stdout, output.StreakView{
		Address:           address,
		StreakCount:       state.StreakCount,
		LastValidPostTime: state.LastValidPostTime,
	})
}
