package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/viziersvault/vault-session/internal/models"
)

// ProfileRepository handles account profile database operations. The session
// core only reads plans; profile writes belong to the main application and
// the payment webhook pipeline.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID retrieves a profile by user id.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	profile := &models.Profile{}
	query := `
		SELECT user_id, plan, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Plan,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// GetPlan returns the stored plan string for a user id. A missing profile or
// a profile without a plan is reported as "free", not as an error: absence of
// a subscription is a normal state.
func (r *ProfileRepository) GetPlan(ctx context.Context, userID string) (string, error) {
	var plan sql.NullString
	query := `SELECT plan FROM profiles WHERE user_id = $1`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&plan)
	if err == sql.ErrNoRows {
		return string(models.TierFree), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get plan for user: %w", err)
	}

	if !plan.Valid || plan.String == "" {
		return string(models.TierFree), nil
	}
	return plan.String, nil
}

// SetPlan upserts a user's plan. Used by the configure CLI and by tests; the
// payment provider webhook in the main application performs the same upsert.
func (r *ProfileRepository) SetPlan(ctx context.Context, userID, plan string) error {
	now := time.Now()
	query := `
		INSERT INTO profiles (user_id, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, userID, plan, now, now); err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	return nil
}
