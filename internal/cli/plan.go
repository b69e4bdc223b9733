package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
	"github.com/promotebya/sunbird-client-sub002/internal/daemon"
	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

func init() {
	planCmd.Flags().StringVar(&planUser, "user", "", "User id (required)")
	planCmd.Flags().StringVar(&planWeek, "week", "", "ISO week id, e.g. 2025-W10 (default: current week)")
	planCmd.Flags().BoolVar(&planPremium, "premium", false, "Use the premium plan quota")
	planCmd.Flags().StringVar(&planCategory, "category", "all", "Category filter")
	planCmd.Flags().IntVar(&planTZ, "tz", 0, "Offset from UTC in minutes")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print JSON instead of a table")
	planCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(planCmd)
}

var (
	planUser     string
	planWeek     string
	planPremium  bool
	planCategory string
	planTZ       int
	planJSON     bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show a user's planned weekly challenges",
	Long: `Plan a user's weekly challenges from the catalog and seed algorithm
alone. Nothing is read from or written to the store, so opened flags from
earlier unlocks are not shown.`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	opts, err := daemon.EngineOptions(cfg, nil)
	if err != nil {
		return err
	}

	week := planWeek
	if week == "" {
		week = engagement.WeekIdentifier(time.Now(), planTZ)
	}

	planner := engagement.NewPlanner(opts.Catalog, opts.Seed)
	items, err := planner.PlanWeek(planUser, planPremium, domain.Category(planCategory), week)
	if err != nil {
		return err
	}

	if planJSON {
		return printJSON(engagement.WeekPlan{WeekID: week, Items: items})
	}

	fmt.Printf("%s  %s  seed=%s (%d)\n", planUser, week, opts.Seed, opts.Seed.Seed(planUser, week))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIER\tCATEGORY\tOPEN\tTITLE")
	for _, it := range items {
		open := check(it.Opened)
		if !it.Opened {
			open = it.LockedReason
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Tier, it.Category, open, it.Title)
	}
	return w.Flush()
}
