package executor

import (
	"context"
	"time"

	"subguard-be/internal/entity"
)

// Input is everything an executor needs to attempt a cancellation.
type Input struct {
	Request      *entity.CancellationRequest
	Subscription *entity.Subscription
	Assessment   *entity.CapabilityAssessment
}

// Outcome is a successful (or manual-handoff) execution result. Failures
// are returned as *apperrors.ExecutorError instead.
type Outcome struct {
	ConfirmationCode string
	EffectiveDate    *time.Time
	RefundAmount     *float64

	// RequiresManual marks a handoff: the request is not done, the owner
	// has to finish it by following Instructions.
	RequiresManual bool
	Instructions   string
}

// Executor is one cancellation strategy.
type Executor interface {
	Method() entity.CancellationMethod
	Execute(ctx context.Context, input *Input) (*Outcome, error)
}

// Registry resolves executors by method.
type Registry struct {
	executors map[entity.CancellationMethod]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	byMethod := make(map[entity.CancellationMethod]Executor, len(executors))
	for _, e := range executors {
		byMethod[e.Method()] = e
	}
	return &Registry{executors: byMethod}
}

func (r *Registry) For(method entity.CancellationMethod) (Executor, bool) {
	e, ok := r.executors[method]
	return e, ok
}
