package contract

import (
	"context"

	"subguard-be/internal/entity"
	"subguard-be/internal/repository/specification"
)

// TransactionRepository reads the bank-transaction feed. The ingestion
// pipeline owns writes, so no mutation methods exist here.
type TransactionRepository interface {
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Transaction, error)
}
