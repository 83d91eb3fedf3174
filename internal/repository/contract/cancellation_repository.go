package contract

import (
	"context"
	"time"

	"subguard-be/internal/entity"
	"subguard-be/internal/repository/specification"

	"github.com/google/uuid"
)

// CancellationRepository persists cancellation requests and their
// append-only audit logs.
type CancellationRepository interface {
	CreateRequest(ctx context.Context, request *entity.CancellationRequest) error
	FindOneRequest(ctx context.Context, specs ...specification.Specification) (*entity.CancellationRequest, error)
	FindAllRequests(ctx context.Context, specs ...specification.Specification) ([]*entity.CancellationRequest, error)

	// UpdateRequestIf writes the request only when the stored status still
	// equals expected (compare-and-swap). Returns false when another
	// transition won the race; the caller must re-read and decide.
	UpdateRequestIf(ctx context.Context, request *entity.CancellationRequest, expected entity.CancellationStatus) (bool, error)

	AppendLog(ctx context.Context, log *entity.CancellationLog) error
	FindLogs(ctx context.Context, requestId uuid.UUID) ([]*entity.CancellationLog, error)
	LastLogTime(ctx context.Context, requestId uuid.UUID) (*time.Time, error)

	// Aggregations for the analytics engine.
	CountByStatus(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.StatusCount, error)
	MethodOutcomes(ctx context.Context, userId *uuid.UUID, since time.Time) ([]*entity.MethodOutcome, error)
}
