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

// NewPlanCmd creates the plan command with get and set subcommands.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage a user's plan",
		Long:  "Get or set the stored plan for a user. The tier resolves from the plan on the next sync.",
	}
	cmd.AddCommand(newPlanGetCmd())
	cmd.AddCommand(newPlanSetCmd())
	return cmd
}

func newPlanGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show a user's plan and resolved tier",
		Args:  cobra.ExactArgs(1),
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
			repo := database.NewProfileRepository(db)
			plan, err := repo.GetPlan(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get plan: %w", err)
			}
			fmt.Printf("User: %s\n", args[0])
			fmt.Printf("Plan: %s\n", plan)
			fmt.Printf("Tier: %s\n", models.ResolveTier(plan))
			return nil
		},
	}
}

func newPlanSetCmd() *cobra.Command {
	var plan string
	cmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Set a user's plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one user id is required")
			}
			if plan == "" {
				return fmt.Errorf("--plan is required")
			}
			// Unknown plans silently resolve to free; refuse them here so a
			// typo does not quietly downgrade a paying user.
			if models.ResolveTier(plan) == models.TierFree && !strings.EqualFold(strings.TrimSpace(plan), "free") {
				return fmt.Errorf("unrecognized plan %q (would resolve to free)", plan)
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
			repo := database.NewProfileRepository(db)
			if err := repo.SetPlan(context.Background(), args[0], plan); err != nil {
				return fmt.Errorf("set plan: %w", err)
			}
			fmt.Printf("Plan for %s set to %s (tier %s).\n", args[0], plan, models.ResolveTier(plan))
			fmt.Println("The new tier takes effect on the user's next session sync.")
			return nil
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "Plan name, e.g. free, basic, plus, pro (required)")
	return cmd
}
