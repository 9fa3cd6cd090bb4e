package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mise/models"
)

type sweepService struct {
	uowFactory UnitOfWorkFactory
	sweeps     ExpirySweepRepository
	audit      *AuditLog
	now        func() time.Time
}

// NewSweepService creates the daily grant expiry sweep
func NewSweepService(uowFactory UnitOfWorkFactory, sweeps ExpirySweepRepository, txns CreditTransactionRepository) SweepService {
	return &sweepService{
		uowFactory: uowFactory,
		sweeps:     sweeps,
		audit:      NewAuditLog(txns),
		now:        time.Now,
	}
}

// RunExpirySweep expires stale referral grants for every user still holding
// one and records the run. The sweep is a safety net behind the lazy
// per-operation expiry, so most days it touches only dormant accounts.
// At most one run is recorded per UTC date.
func (s *sweepService) RunExpirySweep(ctx context.Context) (*models.ExpirySweepRun, error) {
	now := s.now().UTC()
	runDate := now.Truncate(24 * time.Hour)

	existing, err := s.sweeps.GetByDate(ctx, runDate)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing sweep run: %w", err)
	}
	if existing != nil {
		log.WithField("runDate", runDate.Format("2006-01-02")).Info("Expiry sweep already ran today, skipping")
		return existing, nil
	}

	userIDs, err := s.listUsersWithExpired(ctx, now)
	if err != nil {
		return nil, err
	}

	totalExpired := 0
	usersAffected := 0
	failures := 0
	for _, userID := range userIDs {
		removed, err := s.expireForUser(ctx, userID, now)
		if err != nil {
			failures++
			log.WithField("userID", userID).WithError(err).Error("Failed to expire grants for user")
			continue
		}
		if removed > 0 {
			totalExpired += removed
			usersAffected++
		}
	}

	run := &models.ExpirySweepRun{
		RunDate:             runDate,
		TotalCreditsExpired: totalExpired,
		UsersAffected:       usersAffected,
		ExecutionSummary: map[string]interface{}{
			"candidate_users": len(userIDs),
			"failures":        failures,
		},
	}
	if err := s.sweeps.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record sweep run: %w", err)
	}

	log.WithFields(log.Fields{
		"runDate":       runDate.Format("2006-01-02"),
		"totalExpired":  totalExpired,
		"usersAffected": usersAffected,
		"failures":      failures,
	}).Info("Completed expiry sweep")
	return run, nil
}

func (s *sweepService) listUsersWithExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	userIDs, err := uow.ReferralGrantRepository().ListUserIDsWithExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with expired grants: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return userIDs, nil
}

// expireForUser runs one user's expiry in its own transaction so a failure
// cannot roll back other users' work
func (s *sweepService) expireForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	removed, pending, err := expireStaleGrants(ctx, uow, userID, now)
	if err != nil {
		return 0, err
	}
	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.audit.Record(ctx, pending...)
	return removed, nil
}
