package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"subguard-be/internal/entity"

	"github.com/google/uuid"
)

// memStores is an in-memory Stores implementation with the same CAS
// semantics as the SQL-backed one.
type memStores struct {
	mu       sync.Mutex
	requests map[uuid.UUID]entity.CancellationRequest
	subs     map[uuid.UUID]entity.Subscription
	logs     []entity.CancellationLog

	failMarkCancelled bool
}

func newMemStores() *memStores {
	return &memStores{
		requests: map[uuid.UUID]entity.CancellationRequest{},
		subs:     map[uuid.UUID]entity.Subscription{},
	}
}

func (s *memStores) stores() Stores {
	return Stores{Requests: s, Subscriptions: s, Logs: s}
}

func (s *memStores) Create(ctx context.Context, request *entity.CancellationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.Id] = *request
	return nil
}

func (s *memStores) Get(ctx context.Context, id uuid.UUID) (*entity.CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	copied := r
	return &copied, nil
}

func (s *memStores) FindNonTerminalForSubscription(ctx context.Context, subscriptionId uuid.UUID) (*entity.CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.SubscriptionId == subscriptionId && !r.Status.IsTerminal() {
			copied := r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStores) FindStaleProcessing(ctx context.Context, cutoff time.Time) ([]*entity.CancellationRequest, error) {
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

func (s *memStores) UpdateIf(ctx context.Context, request *entity.CancellationRequest, expected entity.CancellationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[request.Id]
	if !ok || stored.Status != expected {
		return false, nil
	}
	s.requests[request.Id] = *request
	return true, nil
}

func (s *memStores) GetSubscription(id uuid.UUID) entity.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id]
}

func (s *memStores) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMarkCancelled {
		return errors.New("subscription row locked")
	}
	sub, ok := s.subs[id]
	if !ok {
		return errors.New("subscription missing")
	}
	sub.Status = entity.SubscriptionStatusCancelled
	s.subs[id] = sub
	return nil
}

func (s *memStores) Append(ctx context.Context, log *entity.CancellationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return nil
}

func (s *memStores) LastEntryTime(ctx context.Context, requestId uuid.UUID) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	for i := range s.logs {
		if s.logs[i].RequestId == requestId {
			t := s.logs[i].CreatedAt
			if last == nil || t.After(*last) {
				last = &t
			}
		}
	}
	return last, nil
}

func (s *memStores) logActions(requestId uuid.UUID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var actions []string
	for _, l := range s.logs {
		if l.RequestId == requestId {
			actions = append(actions, l.Action)
		}
	}
	return actions
}

// memTx snapshots state before fn and restores it when fn errors, giving
// the fakes real rollback behaviour for the atomicity tests.
type memTx struct {
	s *memStores
}

func (t memTx) InTx(ctx context.Context, fn func(tx Stores) error) error {
	t.s.mu.Lock()
	requests := make(map[uuid.UUID]entity.CancellationRequest, len(t.s.requests))
	for k, v := range t.s.requests {
		requests[k] = v
	}
	subs := make(map[uuid.UUID]entity.Subscription, len(t.s.subs))
	for k, v := range t.s.subs {
		subs[k] = v
	}
	logLen := len(t.s.logs)
	t.s.mu.Unlock()

	if err := fn(t.s.stores()); err != nil {
		t.s.mu.Lock()
		t.s.requests = requests
		t.s.subs = subs
		t.s.logs = t.s.logs[:logLen]
		t.s.mu.Unlock()
		return err
	}
	return nil
}
