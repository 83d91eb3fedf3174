package contract

import (
	"context"

	"subguard-be/internal/entity"
	"subguard-be/internal/repository/specification"
)

type CapabilityRepository interface {
	Upsert(ctx context.Context, capability *entity.ProviderCapability) error
	FindByProvider(ctx context.Context, normalizedProvider string) (*entity.ProviderCapability, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ProviderCapability, error)
}
