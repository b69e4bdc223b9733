package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promotebya/sunbird-client-sub002/internal/daemon"
	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

func init() {
	catalogCmd.Flags().StringVar(&catalogCategory, "category", "all", "Only list this category")
	rootCmd.AddCommand(catalogCmd)
}

var catalogCategory string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the challenge catalog, plan quotas and tier rules",
	RunE:  runCatalog,
}

func runCatalog(cmd *cobra.Command, args []string) error {
	opts, err := daemon.EngineOptions(cfg, nil)
	if err != nil {
		return err
	}
	cat := opts.Catalog

	category := domain.Category(catalogCategory)
	if !category.Valid() {
		return fmt.Errorf("%w %q", domain.ErrInvalidCategory, category)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIER\tCATEGORY\tTITLE")
	for _, def := range cat.Filter(category) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.ID, def.Tier, def.Category, def.Title)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "TIER\tPOINTS\tUNLOCK AT\tFREE\tPREMIUM")
	free, premium := cat.Quota(domain.PlanFree), cat.Quota(domain.PlanPremium)
	for _, t := range domain.Tiers {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d+%d\t%d+%d\n", t,
			cat.Points(t), cat.Requirement(t),
			free.Open[t], free.Unlockable[t],
			premium.Open[t], premium.Unlockable[t])
	}
	return w.Flush()
}
