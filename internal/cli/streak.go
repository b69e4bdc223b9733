package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

func init() {
	for _, c := range []*cobra.Command{streakShowCmd, streakCompleteCmd, streakCatchupCmd} {
		c.Flags().StringVar(&streakUser, "user", "", "User id (required)")
		c.Flags().IntVar(&streakTZ, "tz", 0, "Offset from UTC in minutes")
		c.MarkFlagRequired("user")
		streakCmd.AddCommand(c)
	}
	rootCmd.AddCommand(streakCmd)
}

var (
	streakUser string
	streakTZ   int
)

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Inspect or advance a user's daily streak",
}

var streakShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the streak with today's derived flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		view, err := d.Engine.Streaks.View(cmd.Context(), streakUser, streakTZ)
		if err != nil {
			return err
		}
		printStreak(view.StreakDoc)
		fmt.Printf("  alive=%t catch-up available=%t armed=%t\n", view.Alive, view.CatchupAvailable, view.CatchupArmed)
		return nil
	},
}

var streakCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Record a streak-worthy completion for today",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		doc, err := d.Engine.Streaks.NotifyCompletion(cmd.Context(), streakUser, streakTZ)
		if err != nil {
			return err
		}
		printStreak(doc)
		return nil
	},
}

var streakCatchupCmd = &cobra.Command{
	Use:   "catchup",
	Short: "Arm this week's catch-up",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		doc, err := d.Engine.Streaks.ActivateCatchup(cmd.Context(), streakUser, streakTZ)
		if err != nil {
			return err
		}
		fmt.Printf("catch-up armed for %s\n", doc.CatchupIntentWeekID)
		return nil
	},
}

func printStreak(doc domain.StreakDoc) {
	fmt.Printf("%s: current %d, longest %d, last active %s\n",
		doc.UserID, doc.Current, doc.Longest, orDash(doc.LastActiveDay))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
