package dto

import (
	"time"

	"github.com/google/uuid"
)

// RunDetectionRequest triggers a detection pass over the owner's
// transaction history.
type RunDetectionRequest struct {
	AccountId     *uuid.UUID `json:"account_id,omitempty"`
	ForceRedetect bool       `json:"force_redetect"`
}

// DetectionResultItem is one recurrence candidate found in the pass.
type DetectionResultItem struct {
	MerchantName   string      `json:"merchant_name"`
	Frequency      string      `json:"frequency"`
	AverageAmount  float64     `json:"average_amount"`
	Currency       string      `json:"currency"`
	Confidence     float64     `json:"confidence"`
	IsSubscription bool        `json:"is_subscription"`
	NextDate       time.Time   `json:"next_date"`
	TransactionIds []uuid.UUID `json:"transaction_ids"`
}

// DetectedSubscriptionItem is a subscription the pass created or updated.
type DetectedSubscriptionItem struct {
	Id           uuid.UUID `json:"id"`
	ProviderName string    `json:"provider_name"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Frequency    string    `json:"frequency"`
	Confidence   float64   `json:"confidence"`
	Change       string    `json:"change"` // created | updated
}

type RunDetectionResponse struct {
	Results              []DetectionResultItem      `json:"results"`
	ChangedSubscriptions []DetectedSubscriptionItem `json:"changed_subscriptions"`
}

// SubscriptionListItem is one row of the owner's subscription listing.
type SubscriptionListItem struct {
	Id            uuid.UUID  `json:"id"`
	ProviderName  string     `json:"provider_name"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	Frequency     string     `json:"frequency"`
	Status        string     `json:"status"`
	Confidence    float64    `json:"confidence"`
	IsManual      bool       `json:"is_manual"`
	NextBillingAt *time.Time `json:"next_billing_at,omitempty"`
}
