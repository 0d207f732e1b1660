package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/viziersvault/vault-session/internal/config"
	"github.com/viziersvault/vault-session/internal/database"
	"github.com/viziersvault/vault-session/internal/models"
	"github.com/viziersvault/vault-session/internal/ratelimit"
)

// NewQuotasCmd creates the quotas configuration command with list and set subcommands.
func NewQuotasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quotas",
		Short: "Manage the quota table",
		Long:  "List or replace the per-tier quota table (stored in database as YAML).",
	}
	cmd.AddCommand(newQuotasListCmd())
	cmd.AddCommand(newQuotasSetCmd())
	return cmd
}

func newQuotasListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active quota table",
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
			repo := database.NewQuotaConfigRepository(db)
			c, err := repo.Get(context.Background())
			if err != nil {
				return fmt.Errorf("get quota config: %w", err)
			}
			if c == nil {
				fmt.Println("No quota override in database; the built-in defaults are active.")
				printTable(ratelimit.DefaultTable())
				return nil
			}
			table, err := ratelimit.ParseYAML([]byte(c.QuotasYAML))
			if err != nil {
				return fmt.Errorf("stored quota table is invalid: %w", err)
			}
			fmt.Printf("Quota override (updated %s):\n", c.UpdatedAt.Format("2006-01-02 15:04:05"))
			printTable(table)
			return nil
		},
	}
}

func newQuotasSetCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the quota table",
		Long:  "Validate a YAML quota table and store it as the active override.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read quota file: %w", err)
			}
			if _, err := ratelimit.ParseYAML(data); err != nil {
				return fmt.Errorf("invalid quota table: %w", err)
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
			repo := database.NewQuotaConfigRepository(db)
			c := &models.QuotaConfig{QuotasYAML: string(data)}
			if err := repo.Set(context.Background(), c); err != nil {
				return fmt.Errorf("set quota config: %w", err)
			}
			fmt.Println("Quota table updated. Running servers pick it up within a minute.")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to a YAML quota table (required)")
	return cmd
}

func printTable(table *ratelimit.Table) {
	actions := table.Actions()
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	for _, tier := range models.Tiers {
		fmt.Printf("  %s:\n", tier)
		for _, action := range actions {
			q, ok := table.Get(tier, action)
			if !ok {
				continue
			}
			fmt.Printf("    %-16s %d per %s\n", action, q.Limit, q.Window)
		}
	}
}
