package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mise/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeAccountCreated   EventType = "account_created"
	EventTypeWeeklyReset      EventType = "weekly_reset"
	EventTypeCreditDeducted   EventType = "credit_deducted"
	EventTypeReferralRedeemed EventType = "referral_redeemed"
	EventTypeGrantsExpired    EventType = "grants_expired"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// AccountCreatedEvent fires when a credit account is lazily created
type AccountCreatedEvent struct {
	UserID          uuid.UUID
	StandardCredits int
}

func (e AccountCreatedEvent) Type() EventType {
	return EventTypeAccountCreated
}

// WeeklyResetEvent fires when the lazy weekly reset replenishes an allowance
type WeeklyResetEvent struct {
	UserID      uuid.UUID
	NewCredits  int
	IsFirstWeek bool
}

func (e WeeklyResetEvent) Type() EventType {
	return EventTypeWeeklyReset
}

// CreditDeductedEvent fires when a credit is consumed for an extraction
type CreditDeductedEvent struct {
	UserID          uuid.UUID
	CreditType      models.CreditType
	BalanceAfter    int
	ExtractionJobID *uuid.UUID
}

func (e CreditDeductedEvent) Type() EventType {
	return EventTypeCreditDeducted
}

// ReferralRedeemedEvent fires when a referee applies a referral code
type ReferralRedeemedEvent struct {
	ReferrerUserID uuid.UUID
	RefereeUserID  uuid.UUID
	Code           string
	CreditsAwarded int
}

func (e ReferralRedeemedEvent) Type() EventType {
	return EventTypeReferralRedeemed
}

// GrantsExpiredEvent fires when stale referral grants are removed
type GrantsExpiredEvent struct {
	UserID         uuid.UUID
	CreditsRemoved int
}

func (e GrantsExpiredEvent) Type() EventType {
	return EventTypeGrantsExpired
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking the caller
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events raised during a unit of work and flushes
// them to the underlying bus only after the database commit succeeds.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits pending events; called after a successful DB commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Events outlive the transaction context, so emit on a fresh one
	eventCtx := context.Background()

	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events to main event bus")

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events; called after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
