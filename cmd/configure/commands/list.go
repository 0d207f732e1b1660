package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/viziersvault/vault-session/internal/config"
	"github.com/viziersvault/vault-session/internal/database"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show all stored configuration",
		Long:  "Show the allowed-origins and quota configuration currently stored in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			ctx := context.Background()

			originConfig, err := database.NewOriginConfigRepository(db).Get(ctx)
			if err != nil {
				return fmt.Errorf("failed to get origin config: %w", err)
			}
			if originConfig == nil {
				fmt.Printf("Origins: not configured (env fallback: %s)\n", cfg.AllowedOrigins)
			} else {
				fmt.Printf("Origins: %s\n", originConfig.AllowedOrigins)
			}

			quotaConfig, err := database.NewQuotaConfigRepository(db).Get(ctx)
			if err != nil {
				return fmt.Errorf("failed to get quota config: %w", err)
			}
			if quotaConfig == nil {
				fmt.Println("Quotas: built-in defaults")
			} else {
				fmt.Printf("Quotas: override stored %s\n", quotaConfig.UpdatedAt.Format("2006-01-02 15:04:05"))
			}

			return nil
		},
	}
	return cmd
}
