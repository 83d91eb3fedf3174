package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string
type BillingFrequency string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"

	FrequencyWeekly    BillingFrequency = "weekly"
	FrequencyMonthly   BillingFrequency = "monthly"
	FrequencyQuarterly BillingFrequency = "quarterly"
	FrequencyYearly    BillingFrequency = "yearly"
)

// Interval returns the estimated gap to the next billing date.
func (f BillingFrequency) Interval() time.Duration {
	switch f {
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyQuarterly:
		return 91 * 24 * time.Hour
	case FrequencyYearly:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Subscription is a recurring payment inferred by the detector or authored
// by the user. Never hard-deleted, only status-transitioned.
type Subscription struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	ProviderName   string // display name as seen on the statement
	NormalizedName string
	Amount         float64
	AmountBucket   int // geometric bucket index, part of the fingerprint
	Currency       string
	Frequency      BillingFrequency
	Status         SubscriptionStatus
	LastBillingAt  *time.Time
	NextBillingAt  *time.Time
	Confidence     float64
	// IsManual marks user-authored subscriptions. Confidence is fixed at
	// 1.0 and detection passes never overwrite the record.
	IsManual  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
