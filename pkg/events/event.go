package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CANCELLATION_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Domain event codes carried on the bus.
const (
	TypeSubscriptionDetected       = "SUBSCRIPTION_DETECTED"
	TypeCancellationInitiated      = "CANCELLATION_INITIATED"
	TypeCancellationCompleted      = "CANCELLATION_COMPLETED"
	TypeCancellationFailed         = "CANCELLATION_FAILED"
	TypeCancellationRequiresManual = "CANCELLATION_REQUIRES_MANUAL"
)

// BaseEvent is the generic implementation every domain event uses.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewSubscriptionDetected announces a subscription created or updated by a
// detection pass.
func NewSubscriptionDetected(userId, subscriptionId uuid.UUID, provider string, confidence float64, created bool) Event {
	return BaseEvent{
		Type: TypeSubscriptionDetected,
		Data: map[string]interface{}{
			"user_id":         userId.String(),
			"subscription_id": subscriptionId.String(),
			"provider":        provider,
			"confidence":      confidence,
			"created":         created,
		},
		OccurredAt: time.Now(),
	}
}

// NewCancellationEvent announces a cancellation request transition. code is
// one of the TypeCancellation* constants.
func NewCancellationEvent(code string, userId, subscriptionId, requestId uuid.UUID, provider, method, status string) Event {
	return BaseEvent{
		Type: code,
		Data: map[string]interface{}{
			"user_id":         userId.String(),
			"subscription_id": subscriptionId.String(),
			"request_id":      requestId.String(),
			"provider":        provider,
			"method":          method,
			"status":          status,
		},
		OccurredAt: time.Now(),
	}
}
