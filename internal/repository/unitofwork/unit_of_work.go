package unitofwork

import (
	"context"

	"subguard-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	TransactionRepository() contract.TransactionRepository
	SubscriptionRepository() contract.SubscriptionRepository
	CancellationRepository() contract.CancellationRepository
	CapabilityRepository() contract.CapabilityRepository
}
