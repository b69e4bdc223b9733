package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promotebya/sunbird-client-sub002/internal/daemon"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply store migrations",
	Long: `Open the configured store, applying pending migrations. SQLite and
PostgreSQL carry goose migrations; Firestore and MongoDB need none beyond
the indexes created on open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.Backend == "" || cfg.Store.Backend == "sqlite" {
			db, err := sqlite.Open(cfg.Store.Dir)
			if err != nil {
				return err
			}
			defer db.Close()
			v, err := db.Version()
			if err != nil {
				return err
			}
			fmt.Printf("sqlite store at version %d\n", v)
			return nil
		}

		s, err := daemon.OpenStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()
		fmt.Printf("%s store ready\n", s.Backend())
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage sunbird configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to $SUNBIRD_HOME/config.toml",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemon.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s/config.toml\n", daemon.SunbirdHome())
		return nil
	},
}
