package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mise/models"
)

type subscriptionService struct {
	subs SubscriptionRepository
	now  func() time.Time
}

// NewSubscriptionService creates a new premium gate backed by the local
// subscription record mirror
func NewSubscriptionService(subs SubscriptionRepository) SubscriptionService {
	return &subscriptionService{
		subs: subs,
		now:  time.Now,
	}
}

// IsPremium reports whether the user holds an active, unexpired subscription.
// No record means free tier.
func (s *subscriptionService) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	record, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to look up subscription: %w", err)
	}
	if record == nil {
		return false, nil
	}
	return record.Premium(s.now()), nil
}

// UpsertSubscription applies a subscription update from the billing webhook
// receiver. Last write wins.
func (s *subscriptionService) UpsertSubscription(ctx context.Context, record *models.SubscriptionRecord) error {
	if err := s.subs.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	log.WithFields(log.Fields{
		"userID":   record.UserID,
		"isActive": record.IsActive,
		"isTrial":  record.IsTrial,
	}).Info("Applied subscription update")
	return nil
}
