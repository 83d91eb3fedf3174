package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"subguard-be/internal/config"
	"subguard-be/internal/entity"
	"subguard-be/internal/pkg/logger"
	"subguard-be/internal/repository/contract"
	"subguard-be/internal/repository/specification"
	"subguard-be/internal/repository/unitofwork"
	"subguard-be/pkg/cancellation/orchestrator"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }
func (nopLogger) GetLogs(level string, limit, offset int) ([]logger.LogEntry, error) {
	return nil, nil
}
func (nopLogger) GetLogById(id string) (*logger.LogEntry, error) { return nil, nil }

// sweepStores is the minimal in-memory store surface the sweep path touches.
type sweepStores struct {
	mu       sync.Mutex
	requests map[uuid.UUID]entity.CancellationRequest
	logs     []entity.CancellationLog
}

func newSweepStores() *sweepStores {
	return &sweepStores{requests: map[uuid.UUID]entity.CancellationRequest{}}
}

func (s *sweepStores) stores() orchestrator.Stores {
	return orchestrator.Stores{Requests: s, Subscriptions: s, Logs: s}
}

func (s *sweepStores) Create(ctx context.Context, request *entity.CancellationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.Id] = *request
	return nil
}

func (s *sweepStores) Get(ctx context.Context, id uuid.UUID) (*entity.CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	copied := r
	return &copied, nil
}

func (s *sweepStores) FindNonTerminalForSubscription(ctx context.Context, subscriptionId uuid.UUID) (*entity.CancellationRequest, error) {
	return nil, nil
}

func (s *sweepStores) FindStaleProcessing(ctx context.Context, cutoff time.Time) ([]*entity.CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.CancellationRequest
	for _, r := range s.requests {
		if r.Status == entity.CancellationStatusProcessing && r.LastAttemptAt != nil && r.LastAttemptAt.Before(cutoff) {
			copied := r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *sweepStores) UpdateIf(ctx context.Context, request *entity.CancellationRequest, expected entity.CancellationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[request.Id]
	if !ok || stored.Status != expected {
		return false, nil
	}
	s.requests[request.Id] = *request
	return true, nil
}

func (s *sweepStores) MarkCancelled(ctx context.Context, id uuid.UUID) error { return nil }

func (s *sweepStores) Append(ctx context.Context, log *entity.CancellationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return nil
}

func (s *sweepStores) LastEntryTime(ctx context.Context, requestId uuid.UUID) (*time.Time, error) {
	return nil, nil
}

func (s *sweepStores) status(id uuid.UUID) entity.CancellationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Status
}

type sweepTx struct{ s *sweepStores }

func (t sweepTx) InTx(ctx context.Context, fn func(tx orchestrator.Stores) error) error {
	return fn(t.s.stores())
}

// stubCancellationRepo backs the redispatch lookup with an empty pending set.
type stubCancellationRepo struct{ contract.CancellationRepository }

func (stubCancellationRepo) FindAllRequests(ctx context.Context, specs ...specification.Specification) ([]*entity.CancellationRequest, error) {
	return nil, nil
}

type stubUow struct{ unitofwork.UnitOfWork }

func (stubUow) CancellationRepository() contract.CancellationRepository {
	return stubCancellationRepo{}
}

type stubUowFactory struct{}

func (stubUowFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return stubUow{} }

func TestRunStaleSweepReclaimsStrandedRequestsAtStartup(t *testing.T) {
	store := newSweepStores()
	staleSince := time.Now().Add(-time.Hour)
	request := entity.CancellationRequest{
		Id:              uuid.New(),
		OrchestrationId: uuid.New(),
		SubscriptionId:  uuid.New(),
		UserId:          uuid.New(),
		Method:          entity.MethodApi,
		Attempts:        1,
		MaxAttempts:     3,
		Status:          entity.CancellationStatusProcessing,
		LastAttemptAt:   &staleSince,
	}
	store.requests[request.Id] = request

	machine := orchestrator.NewMachine(store.stores(), sweepTx{s: store}, config.OrchestrationConfig{
		DefaultMaxAttempts:       3,
		ApiTimeout:               30 * time.Second,
		AutomationTimeout:        5 * time.Minute,
		ManualTimeout:            72 * time.Hour,
		MinCancellableConfidence: 0.5,
	}, nil, nopLogger{})

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	worker := NewDispatchWorker(pubSub, "cancellation.dispatch", stubUowFactory{}, machine,
		nil, nil, NewPublisherService("cancellation.dispatch", pubSub), nil, nil, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An hour-long interval: only the startup pass can reclaim the request
	// within the test's deadline.
	go worker.RunStaleSweep(ctx, time.Hour)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.status(request.Id) != entity.CancellationStatusProcessing {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, entity.CancellationStatusFailed, store.status(request.Id))
}
