package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmehdipour/wa-notifier/internal/db"
	"github.com/spf13/cobra"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the audit table for the configured audit driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		driver := cfg.Audit.Driver
		if driver == "" || driver == "none" {
			return fmt.Errorf("audit.driver is %q; nothing to migrate", driver)
		}

		sqlDB, err := db.NewSQLConnection(driver, cfg.Audit.DSN, sqlOpts(cfg.Audit))
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		sqlPath := filepath.Join(migrationsDir, driver, "001_init.sql")
		sqlBytes, err := os.ReadFile(sqlPath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", sqlPath, err)
		}

		if _, err := sqlDB.Exec(string(sqlBytes)); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), ">> Migration complete (%s)\n", driver)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "directory holding <driver>/001_init.sql")
}
