package models

import (
	"time"
)

// BalanceSummary is the balance view handed to the API layer.
// Premium users get the all-zero shape with CanExtract true.
type BalanceSummary struct {
	StandardCredits int       `json:"standardCredits"`
	ReferralCredits int       `json:"referralCredits"`
	TotalCredits    int       `json:"totalCredits"`
	IsFirstWeek     bool      `json:"isFirstWeek"`
	NextResetAt     time.Time `json:"nextResetAt"`
	CanExtract      bool      `json:"canExtract"`
	IsPremium       bool      `json:"isPremium"`
}

// EligibilityCheck is the result of a CanExtract call
type EligibilityCheck struct {
	CanExtract       bool   `json:"canExtract"`
	ReasonCode       string `json:"reasonCode"`
	CreditsRemaining int    `json:"creditsRemaining,omitempty"`
}

// CodeValidation is the result of checking a referral code for a user
type CodeValidation struct {
	IsValid      bool   `json:"isValid"`
	ReasonCode   string `json:"reasonCode"`
	ReferrerName string `json:"referrerName,omitempty"`
}

// RedemptionResult is the outcome of applying a referral code
type RedemptionResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	CreditsAwarded int    `json:"creditsAwarded,omitempty"`
}

// ReferralStats summarizes a user's referral activity. TotalCreditsEarned is
// a nominal lifetime figure and is not reduced by expiry.
type ReferralStats struct {
	Code                   string `json:"code"`
	UsesCount              int    `json:"usesCount"`
	TotalCreditsEarned     int    `json:"totalCreditsEarned"`
	PendingReferralCredits int    `json:"pendingReferralCredits"`
}
