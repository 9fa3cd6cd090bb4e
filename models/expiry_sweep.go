package models

import (
	"time"
)

// ExpirySweepRun records one execution of the grant expiry sweep
type ExpirySweepRun struct {
	ID                  int64                  `db:"id"`
	RunDate             time.Time              `db:"run_date"`
	TotalCreditsExpired int                    `db:"total_credits_expired"`
	UsersAffected       int                    `db:"users_affected"`
	ExecutionSummary    map[string]interface{} `db:"execution_summary"`
	CreatedAt           time.Time              `db:"created_at"`
}
