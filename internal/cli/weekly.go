package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

func init() {
	weeklyCmd.PersistentFlags().StringVar(&weeklyPair, "pair", "", "Pair id (required)")
	weeklyCmd.PersistentFlags().IntVar(&weeklyTZ, "tz", 0, "Offset from UTC in minutes")
	weeklyCmd.MarkPersistentFlagRequired("pair")

	weeklyEnsureCmd.Flags().IntVar(&weeklyTarget, "target", 0, "Weekly point target (default from config)")
	weeklyClaimCmd.Flags().StringVar(&weeklyReward, "reward", "", "Reward id (required)")
	weeklyClaimCmd.MarkFlagRequired("reward")
	weeklyHistoryCmd.Flags().IntVar(&weeklyLimit, "limit", 12, "Number of weeks")
	weeklyAddCmd.Flags().StringVar(&weeklyUser, "user", "", "User id credited with the points")
	weeklyAddCmd.Flags().StringVar(&weeklyReason, "reason", "manual", "Reason recorded on the event")

	weeklyCmd.AddCommand(weeklyEnsureCmd, weeklyClaimCmd, weeklyHistoryCmd, weeklyAddCmd)
	rootCmd.AddCommand(weeklyCmd)
}

var (
	weeklyPair   string
	weeklyTZ     int
	weeklyTarget int
	weeklyReward string
	weeklyLimit  int
	weeklyUser   string
	weeklyReason string
)

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Manage a pair's weekly goal",
}

var weeklyEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Recompute this week's progress and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		target := weeklyTarget
		if target == 0 {
			target = cfg.Weekly.DefaultTarget
		}
		weekly, err := d.Engine.Points.EnsureWeekly(cmd.Context(), weeklyPair, target, weeklyTZ)
		if err != nil {
			return err
		}
		printWeekly(weekly)
		return nil
	},
}

var weeklyClaimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim this week's reward",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		weekly, err := d.Engine.Points.ClaimWeeklyReward(cmd.Context(), weeklyPair, weeklyReward, weeklyTZ)
		if err != nil {
			return err
		}
		printWeekly(weekly)
		return nil
	},
}

var weeklyHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past weeks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		entries, err := d.Engine.Points.History(cmd.Context(), weeklyPair, weeklyLimit, weeklyTZ)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No weekly history yet. Run 'sunbird weekly ensure' first.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WEEK\tSTATUS\tEARNED\tTARGET\tREWARD")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", e.WeekKey, e.Status, e.Earned, e.Target, orDash(e.RewardID))
		}
		return w.Flush()
	},
}

var weeklyAddCmd = &cobra.Command{
	Use:   "add <points>",
	Short: "Append a point event for the pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value int
		if _, err := fmt.Sscan(args[0], &value); err != nil {
			return fmt.Errorf("points must be an integer: %q", args[0])
		}

		d, err := openDaemon(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		ev, err := d.Engine.Points.AddPoints(cmd.Context(), weeklyPair, weeklyUser, value, weeklyReason)
		if err != nil {
			return err
		}
		sum, err := d.Engine.Points.CurrentWeekPoints(cmd.Context(), weeklyPair, weeklyTZ)
		if err != nil {
			return err
		}
		fmt.Printf("added %d (event %s); week total %d\n", ev.Value, ev.ID, sum)
		return nil
	},
}

func printWeekly(w domain.Weekly) {
	fmt.Printf("%s %s: %d/%d %s, weekly streak %d (longest %d)\n",
		w.PairID, w.WeekKey, w.Progress, w.Target, w.Status, w.WeeklyStreak, w.LongestWeeklyStreak)
	if w.SelectedRewardID != "" {
		fmt.Printf("  reward: %s\n", w.SelectedRewardID)
	}
}
