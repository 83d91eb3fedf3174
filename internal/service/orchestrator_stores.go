package service

import (
	"context"
	"time"

	"subguard-be/internal/entity"
	"subguard-be/internal/repository/contract"
	"subguard-be/internal/repository/specification"
	"subguard-be/internal/repository/unitofwork"
	"subguard-be/pkg/cancellation/orchestrator"

	"github.com/google/uuid"
)

// The orchestrator state machine talks to narrow store interfaces so it can
// be tested without a database. These adapters bind those interfaces to the
// repository layer: the plain variants open a fresh unit of work per call
// (reads and single CAS writes), while uowTxRunner binds all three stores to
// one transaction for the multi-write transitions.

type requestStoreAdapter struct {
	repo contract.CancellationRepository
}

func (a *requestStoreAdapter) Create(ctx context.Context, request *entity.CancellationRequest) error {
	return a.repo.CreateRequest(ctx, request)
}

func (a *requestStoreAdapter) Get(ctx context.Context, id uuid.UUID) (*entity.CancellationRequest, error) {
	return a.repo.FindOneRequest(ctx, specification.ByID{ID: id})
}

func (a *requestStoreAdapter) FindNonTerminalForSubscription(ctx context.Context, subscriptionId uuid.UUID) (*entity.CancellationRequest, error) {
	return a.repo.FindOneRequest(ctx,
		specification.ForSubscription{SubscriptionID: subscriptionId},
		specification.NonTerminal{},
	)
}

func (a *requestStoreAdapter) FindStaleProcessing(ctx context.Context, cutoff time.Time) ([]*entity.CancellationRequest, error) {
	return a.repo.FindAllRequests(ctx, specification.ProcessingOlderThan{Cutoff: cutoff})
}

func (a *requestStoreAdapter) UpdateIf(ctx context.Context, request *entity.CancellationRequest, expected entity.CancellationStatus) (bool, error) {
	return a.repo.UpdateRequestIf(ctx, request, expected)
}

type subscriptionStoreAdapter struct {
	repo contract.SubscriptionRepository
}

func (a *subscriptionStoreAdapter) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	return a.repo.MarkCancelled(ctx, id)
}

type auditLogAdapter struct {
	repo contract.CancellationRepository
}

func (a *auditLogAdapter) Append(ctx context.Context, log *entity.CancellationLog) error {
	return a.repo.AppendLog(ctx, log)
}

func (a *auditLogAdapter) LastEntryTime(ctx context.Context, requestId uuid.UUID) (*time.Time, error) {
	return a.repo.LastLogTime(ctx, requestId)
}

func storesFrom(uow unitofwork.UnitOfWork) orchestrator.Stores {
	return orchestrator.Stores{
		Requests:      &requestStoreAdapter{repo: uow.CancellationRepository()},
		Subscriptions: &subscriptionStoreAdapter{repo: uow.SubscriptionRepository()},
		Logs:          &auditLogAdapter{repo: uow.CancellationRepository()},
	}
}

// factoryRequestStore and friends serve the machine's non-transactional
// paths. Each call runs against a fresh unit of work without Begin, which
// GORM executes as an auto-committed statement.

type factoryRequestStore struct {
	factory unitofwork.RepositoryFactory
}

func (s *factoryRequestStore) adapter(ctx context.Context) *requestStoreAdapter {
	return &requestStoreAdapter{repo: s.factory.NewUnitOfWork(ctx).CancellationRepository()}
}

func (s *factoryRequestStore) Create(ctx context.Context, request *entity.CancellationRequest) error {
	return s.adapter(ctx).Create(ctx, request)
}

func (s *factoryRequestStore) Get(ctx context.Context, id uuid.UUID) (*entity.CancellationRequest, error) {
	return s.adapter(ctx).Get(ctx, id)
}

func (s *factoryRequestStore) FindNonTerminalForSubscription(ctx context.Context, subscriptionId uuid.UUID) (*entity.CancellationRequest, error) {
	return s.adapter(ctx).FindNonTerminalForSubscription(ctx, subscriptionId)
}

func (s *factoryRequestStore) FindStaleProcessing(ctx context.Context, cutoff time.Time) ([]*entity.CancellationRequest, error) {
	return s.adapter(ctx).FindStaleProcessing(ctx, cutoff)
}

func (s *factoryRequestStore) UpdateIf(ctx context.Context, request *entity.CancellationRequest, expected entity.CancellationStatus) (bool, error) {
	return s.adapter(ctx).UpdateIf(ctx, request, expected)
}

type factorySubscriptionStore struct {
	factory unitofwork.RepositoryFactory
}

func (s *factorySubscriptionStore) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	return s.factory.NewUnitOfWork(ctx).SubscriptionRepository().MarkCancelled(ctx, id)
}

type factoryAuditLog struct {
	factory unitofwork.RepositoryFactory
}

func (s *factoryAuditLog) Append(ctx context.Context, log *entity.CancellationLog) error {
	return s.factory.NewUnitOfWork(ctx).CancellationRepository().AppendLog(ctx, log)
}

func (s *factoryAuditLog) LastEntryTime(ctx context.Context, requestId uuid.UUID) (*time.Time, error) {
	return s.factory.NewUnitOfWork(ctx).CancellationRepository().LastLogTime(ctx, requestId)
}

// NewOrchestratorStores builds the machine's default store set on top of the
// repository factory.
func NewOrchestratorStores(factory unitofwork.RepositoryFactory) orchestrator.Stores {
	return orchestrator.Stores{
		Requests:      &factoryRequestStore{factory: factory},
		Subscriptions: &factorySubscriptionStore{factory: factory},
		Logs:          &factoryAuditLog{factory: factory},
	}
}

// uowTxRunner implements orchestrator.TxRunner on the unit of work: every
// store write inside fn lands in one database transaction.
type uowTxRunner struct {
	factory unitofwork.RepositoryFactory
}

func NewTxRunner(factory unitofwork.RepositoryFactory) orchestrator.TxRunner {
	return &uowTxRunner{factory: factory}
}

func (r *uowTxRunner) InTx(ctx context.Context, fn func(tx orchestrator.Stores) error) error {
	uow := r.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(storesFrom(uow)); err != nil {
		return err
	}
	return uow.Commit()
}
