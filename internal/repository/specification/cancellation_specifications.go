package specification

import (
	"time"

	"subguard-be/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ForSubscription scopes cancellation requests to one subscription.
type ForSubscription struct {
	SubscriptionID uuid.UUID
}

func (s ForSubscription) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("subscription_id = ?", s.SubscriptionID)
}

// ByStatus filters requests by lifecycle status.
type ByStatus struct {
	Status entity.CancellationStatus
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", string(s.Status))
}

// NonTerminal keeps only requests that can still transition. Used to
// enforce the one-in-flight-request-per-subscription invariant.
type NonTerminal struct{}

func (s NonTerminal) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status NOT IN ?", []string{
		string(entity.CancellationStatusCompleted),
		string(entity.CancellationStatusCancelled),
	})
}

// ByOrchestrationID looks a request up by its public tracking handle.
type ByOrchestrationID struct {
	OrchestrationID uuid.UUID
}

func (s ByOrchestrationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("orchestration_id = ?", s.OrchestrationID)
}

// ProcessingOlderThan matches requests stuck in processing past a cutoff,
// used by the startup/periodic stale sweep.
type ProcessingOlderThan struct {
	Cutoff time.Time
}

func (s ProcessingOlderThan) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ? AND last_attempt_at IS NOT NULL AND last_attempt_at < ?",
		string(entity.CancellationStatusProcessing), s.Cutoff)
}
