package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"mise/config"
	"mise/database"
	"mise/events"
	"mise/repository"
	"mise/service"
)

// Run initializes and starts the credit ledger service
func Run(ctx context.Context) error {
	log.Println("Starting mise credit ledger...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()
	registerEventLogging(eventBus)

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Pool-backed repositories for reads and post-commit audit writes
	txnRepo := repository.NewCreditTransactionRepository(db)
	sweepRepo := repository.NewExpirySweepRepository(db)

	// The ledger services are consumed in-process by the API layer's
	// handlers; this binary only runs the background sweep.
	sweepService := service.NewSweepService(uowFactory, sweepRepo, txnRepo)

	// Schedule the daily grant expiry sweep
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(cfg.SweepHourUTC), 0, 0))),
		gocron.NewTask(func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := sweepService.RunExpirySweep(sweepCtx); err != nil {
				log.Printf("Expiry sweep failed: %v", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}
	scheduler.Start()
	log.Printf("Expiry sweep scheduled daily at %02d:00 UTC", cfg.SweepHourUTC)

	// Wait for context cancellation
	log.Printf("Ledger is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Println("Shutting down...")
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Error stopping scheduler: %v", err)
	}

	// Give cleanup operations time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Println("Shutdown completed")
	}

	return nil
}

// registerEventLogging wires observers for the ledger's domain events
func registerEventLogging(bus *events.Bus) {
	bus.Subscribe(events.EventTypeReferralRedeemed, func(_ context.Context, e events.Event) {
		ev := e.(events.ReferralRedeemedEvent)
		log.Printf("Referral redeemed: code %s, referrer %s, referee %s", ev.Code, ev.ReferrerUserID, ev.RefereeUserID)
	})
	bus.Subscribe(events.EventTypeGrantsExpired, func(_ context.Context, e events.Event) {
		ev := e.(events.GrantsExpiredEvent)
		log.Printf("Expired %d referral credits for user %s", ev.CreditsRemoved, ev.UserID)
	})
}
