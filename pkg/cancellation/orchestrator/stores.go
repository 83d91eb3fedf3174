package orchestrator

import (
	"context"
	"time"

	"subguard-be/internal/entity"

	"github.com/google/uuid"
)

// RequestStore is the narrow persistence surface the state machine needs
// for cancellation requests. UpdateIf must provide compare-and-swap
// semantics on status, every transition is serialized through it.
type RequestStore interface {
	Create(ctx context.Context, request *entity.CancellationRequest) error
	Get(ctx context.Context, id uuid.UUID) (*entity.CancellationRequest, error)
	FindNonTerminalForSubscription(ctx context.Context, subscriptionId uuid.UUID) (*entity.CancellationRequest, error)
	FindStaleProcessing(ctx context.Context, cutoff time.Time) ([]*entity.CancellationRequest, error)
	UpdateIf(ctx context.Context, request *entity.CancellationRequest, expected entity.CancellationStatus) (bool, error)
}

// SubscriptionStore gives the machine the subscription side of the
// completion transition.
type SubscriptionStore interface {
	MarkCancelled(ctx context.Context, id uuid.UUID) error
}

// AuditLog is the append-only transition trail.
type AuditLog interface {
	Append(ctx context.Context, log *entity.CancellationLog) error
	LastEntryTime(ctx context.Context, requestId uuid.UUID) (*time.Time, error)
}

// Stores bundles the three surfaces so a transaction can swap all of them
// for transactional variants at once.
type Stores struct {
	Requests      RequestStore
	Subscriptions SubscriptionStore
	Logs          AuditLog
}

// TxRunner executes fn atomically: either every write through the supplied
// stores commits, or none do. The completion transition depends on this.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Stores) error) error
}
