package dto

import (
	"time"

	"github.com/google/uuid"
)

// InitiateCancellationRequest starts a managed cancellation for one
// subscription.
type InitiateCancellationRequest struct {
	SubscriptionId  uuid.UUID `json:"subscription_id" validate:"required"`
	PreferredMethod string    `json:"preferred_method" validate:"omitempty,oneof=auto api automation manual"`
	Priority        string    `json:"priority" validate:"omitempty,oneof=low normal high"`
	Notes           string    `json:"notes"`
}

// InitiateCancellationResponse is the tracking handle returned immediately;
// execution continues in the background.
type InitiateCancellationResponse struct {
	RequestId        uuid.UUID `json:"request_id"`
	OrchestrationId  uuid.UUID `json:"orchestration_id"`
	Status           string    `json:"status"`
	Method           string    `json:"method"`
	TrackingEndpoint string    `json:"tracking_endpoint"`
}

// CancellationLogItem is one audit-trail entry.
type CancellationLogItem struct {
	Action          string                 `json:"action"`
	Status          string                 `json:"status"`
	Message         string                 `json:"message"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	SincePreviousMs int64                  `json:"since_previous_ms"`
	CreatedAt       time.Time              `json:"created_at"`
}

// CancellationStatusResponse is the full state of one request.
type CancellationStatusResponse struct {
	RequestId        uuid.UUID             `json:"request_id"`
	OrchestrationId  uuid.UUID             `json:"orchestration_id"`
	SubscriptionId   uuid.UUID             `json:"subscription_id"`
	Status           string                `json:"status"`
	Method           string                `json:"method"`
	FallbackChain    []string              `json:"fallback_chain"`
	Attempts         int                   `json:"attempts"`
	MaxAttempts      int                   `json:"max_attempts"`
	Notes            string                `json:"notes,omitempty"`
	ErrorCode        string                `json:"error_code,omitempty"`
	ErrorMessage     string                `json:"error_message,omitempty"`
	ConfirmationCode string                `json:"confirmation_code,omitempty"`
	EffectiveDate    *time.Time            `json:"effective_date,omitempty"`
	RefundAmount     *float64              `json:"refund_amount,omitempty"`
	NextSteps        []string              `json:"next_steps"`
	Logs             []CancellationLogItem `json:"logs"`
	CreatedAt        time.Time             `json:"created_at"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
}

// RetryCancellationRequest re-arms a failed request.
type RetryCancellationRequest struct {
	ForceMethod string `json:"force_method" validate:"omitempty,oneof=api automation manual"`
	Escalate    bool   `json:"escalate"`
}

// CancelRequestRequest abandons an in-flight request.
type CancelRequestRequest struct {
	Reason string `json:"reason"`
}

// ConfirmManualRequest reports the owner's verdict on a requires_manual
// handoff.
type ConfirmManualRequest struct {
	WasSuccessful    bool       `json:"was_successful"`
	ConfirmationCode string     `json:"confirmation_code"`
	EffectiveDate    *time.Time `json:"effective_date,omitempty"`
	RefundAmount     *float64   `json:"refund_amount,omitempty"`
	Message          string     `json:"message"`
}

// EligibilityResponse answers canCancel for a subscription.
type EligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}
