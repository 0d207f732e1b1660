package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viziersvault/vault-session/internal/config"
	"github.com/viziersvault/vault-session/internal/database"
	"github.com/viziersvault/vault-session/internal/models"
)

// NewOriginsCmd creates the origins configuration command with list and set subcommands.
func NewOriginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "origins",
		Short: "Manage allowed application origins",
		Long:  "List or update the origins allowed to call session endpoints (stored in database).",
	}
	cmd.AddCommand(newOriginsListCmd())
	cmd.AddCommand(newOriginsSetCmd())
	return cmd
}

func newOriginsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current allowed origins",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() { _ = db.Close() }()
			repo := database.NewOriginConfigRepository(db)
			c, err := repo.Get(context.Background())
			if err != nil {
				return fmt.Errorf("get origin config: %w", err)
			}
			if c == nil {
				fmt.Println("No origin configuration in database. Use 'origins set' to add one.")
				fmt.Printf("Environment fallback: %s\n", cfg.AllowedOrigins)
				return nil
			}
			fmt.Println("Allowed origins:")
			for _, o := range database.AllowedOriginsSlice(c.AllowedOrigins) {
				fmt.Printf("  - %s\n", o)
			}
			fmt.Printf("Last updated: %s\n", c.UpdatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newOriginsSetCmd() *cobra.Command {
	var origins string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set allowed origins",
		Long:  "Update the allowed origins (comma-separated scheme+host values). Stored in database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			origins = strings.TrimSpace(origins)
			if origins == "" {
				return fmt.Errorf("--origins is required (comma-separated list)")
			}
			for _, o := range database.AllowedOriginsSlice(origins) {
				if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
					return fmt.Errorf("origin %q must include a scheme", o)
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() { _ = db.Close() }()
			repo := database.NewOriginConfigRepository(db)
			c := &models.OriginConfig{AllowedOrigins: origins}
			if err := repo.Set(context.Background(), c); err != nil {
				return fmt.Errorf("set origin config: %w", err)
			}
			fmt.Println("Origin configuration updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	return cmd
}
