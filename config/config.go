package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Credits is the immutable credit policy injected into the ledger services
type Credits struct {
	FirstWeekCredits      int // Weekly allowance during the first week
	StandardWeeklyCredits int // Weekly allowance afterwards
	ReferralBonusCredits  int // Awarded to each side of a redemption
	ReferralExpiryDays    int // Grant lifetime
	MaxReferralCredits    int // Cap on live referral credits per user
}

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Credit policy
	Credits Credits

	// Expiry sweep schedule, hour in UTC (0-23)
	SweepHourUTC int

	// Environment: "development", "production" or "test"
	Environment string
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		Credits: Credits{
			FirstWeekCredits:      5,
			StandardWeeklyCredits: 3,
			ReferralBonusCredits:  5,
			ReferralExpiryDays:    30,
			MaxReferralCredits:    50,
		},

		SweepHourUTC: 4,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	overrideInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				*dst = parsed
			}
		}
	}
	overrideInt("FIRST_WEEK_CREDITS", &config.Credits.FirstWeekCredits)
	overrideInt("STANDARD_WEEKLY_CREDITS", &config.Credits.StandardWeeklyCredits)
	overrideInt("REFERRAL_BONUS_CREDITS", &config.Credits.ReferralBonusCredits)
	overrideInt("REFERRAL_EXPIRY_DAYS", &config.Credits.ReferralExpiryDays)
	overrideInt("MAX_REFERRAL_CREDITS", &config.Credits.MaxReferralCredits)
	overrideInt("SWEEP_HOUR_UTC", &config.SweepHourUTC)

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
