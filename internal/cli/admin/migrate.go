package admin

import (
	"fmt"

	"github.com/cloo-solutions/ragsync/internal/config"
	"github.com/cloo-solutions/ragsync/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending schema migrations to RAGSYNC_DATABASE_URL and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("RAGSYNC_DATABASE_URL is required")
			}
			return database.Migrate(cfg.DatabaseURL, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}
