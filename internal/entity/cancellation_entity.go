package entity

import (
	"time"

	"github.com/google/uuid"
)

// CancellationMethod is the closed set of execution strategies.
type CancellationMethod string

const (
	MethodApi        CancellationMethod = "api"
	MethodAutomation CancellationMethod = "automation"
	MethodManual     CancellationMethod = "manual"
)

// MethodPreference is what the owner asked for; "auto" delegates the choice
// to the selector.
type MethodPreference string

const (
	PreferenceAuto       MethodPreference = "auto"
	PreferenceApi        MethodPreference = "api"
	PreferenceAutomation MethodPreference = "automation"
	PreferenceManual     MethodPreference = "manual"
)

type CancellationStatus string

const (
	CancellationStatusPending        CancellationStatus = "pending"
	CancellationStatusProcessing     CancellationStatus = "processing"
	CancellationStatusRequiresManual CancellationStatus = "requires_manual"
	CancellationStatusCompleted      CancellationStatus = "completed"
	CancellationStatusFailed         CancellationStatus = "failed"
	CancellationStatusCancelled      CancellationStatus = "cancelled"
)

// IsTerminal reports whether the status is absorbing. No transition is
// permitted out of a terminal state.
func (s CancellationStatus) IsTerminal() bool {
	return s == CancellationStatusCompleted || s == CancellationStatusCancelled
}

type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityNormal RequestPriority = "normal"
	PriorityHigh   RequestPriority = "high"
)

// ErrorDetail carries the last executor failure on a request.
type ErrorDetail struct {
	Code    string
	Message string
}

// RetryLink ties a retry request back to the request it supersedes.
type RetryLink struct {
	RetriedFromId uuid.UUID
}

// CancellationRequest is one managed cancellation lifecycle. At most one
// non-terminal request may exist per subscription at any time.
type CancellationRequest struct {
	Id              uuid.UUID
	OrchestrationId uuid.UUID
	SubscriptionId  uuid.UUID
	UserId          uuid.UUID
	Method          CancellationMethod
	FallbackChain   []CancellationMethod // ranked alternates, consumed on failure
	Priority        RequestPriority
	Attempts        int
	MaxAttempts     int
	Status          CancellationStatus
	Notes           string

	LastError *ErrorDetail
	RetryLink *RetryLink

	ConfirmationCode string
	EffectiveDate    *time.Time
	RefundAmount     *float64

	CreatedAt     time.Time
	LastAttemptAt *time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

// NextFallback pops the next ranked method, or false when the chain is
// exhausted.
func (r *CancellationRequest) NextFallback() (CancellationMethod, []CancellationMethod, bool) {
	if len(r.FallbackChain) == 0 {
		return "", nil, false
	}
	return r.FallbackChain[0], r.FallbackChain[1:], true
}

// CancellationLog is one append-only audit entry. Never mutated or deleted.
type CancellationLog struct {
	Id        uuid.UUID
	RequestId uuid.UUID
	Action    string
	Status    CancellationStatus
	Message   string
	Metadata  map[string]interface{}
	// Elapsed since the previous entry for the same request.
	SincePrevious time.Duration
	CreatedAt     time.Time
}
