package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mise/database"
	"mise/models"
)

// ExpirySweepRepository implements the ExpirySweepRepository interface
type ExpirySweepRepository struct {
	db *database.DB
}

// NewExpirySweepRepository creates a new expiry sweep repository
func NewExpirySweepRepository(db *database.DB) *ExpirySweepRepository {
	return &ExpirySweepRepository{db: db}
}

// GetByDate checks if a sweep run exists for a specific date
func (r *ExpirySweepRepository) GetByDate(ctx context.Context, date time.Time) (*models.ExpirySweepRun, error) {
	// Normalize date to start of day
	dateOnly := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	query := `
		SELECT id, run_date, total_credits_expired, users_affected,
		       execution_summary, created_at
		FROM expiry_sweep_runs
		WHERE run_date = $1
	`

	var run models.ExpirySweepRun
	var summaryJSON []byte

	err := r.db.QueryRow(ctx, query, dateOnly).Scan(
		&run.ID,
		&run.RunDate,
		&run.TotalCreditsExpired,
		&run.UsersAffected,
		&summaryJSON,
		&run.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep run for date %s: %w", dateOnly.Format("2006-01-02"), err)
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.ExecutionSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution summary: %w", err)
		}
	}

	return &run, nil
}

// Create creates a new sweep run record
func (r *ExpirySweepRepository) Create(ctx context.Context, run *models.ExpirySweepRun) error {
	// Normalize date to start of day
	run.RunDate = time.Date(run.RunDate.Year(), run.RunDate.Month(), run.RunDate.Day(),
		0, 0, 0, 0, run.RunDate.Location())

	summaryJSON, err := json.Marshal(run.ExecutionSummary)
	if err != nil {
		return fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	query := `
		INSERT INTO expiry_sweep_runs
		(run_date, total_credits_expired, users_affected, execution_summary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err = r.db.QueryRow(ctx, query,
		run.RunDate,
		run.TotalCreditsExpired,
		run.UsersAffected,
		summaryJSON,
	).Scan(&run.ID, &run.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create sweep run for date %s: %w",
			run.RunDate.Format("2006-01-02"), err)
	}

	return nil
}

// GetLatest returns the most recent sweep run
func (r *ExpirySweepRepository) GetLatest(ctx context.Context) (*models.ExpirySweepRun, error) {
	query := `
		SELECT id, run_date, total_credits_expired, users_affected,
		       execution_summary, created_at
		FROM expiry_sweep_runs
		ORDER BY run_date DESC
		LIMIT 1
	`

	var run models.ExpirySweepRun
	var summaryJSON []byte

	err := r.db.QueryRow(ctx, query).Scan(
		&run.ID,
		&run.RunDate,
		&run.TotalCreditsExpired,
		&run.UsersAffected,
		&summaryJSON,
		&run.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest sweep run: %w", err)
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.ExecutionSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution summary: %w", err)
		}
	}

	return &run, nil
}
