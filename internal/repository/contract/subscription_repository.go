package contract

import (
	"context"

	"subguard-be/internal/entity"
	"subguard-be/internal/repository/specification"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *entity.Subscription) error
	Update(ctx context.Context, subscription *entity.Subscription) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Subscription, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Subscription, error)

	// MarkCancelled flips the subscription status inside the calling
	// transaction. Used by the completion transition, which must update
	// request and subscription atomically.
	MarkCancelled(ctx context.Context, id uuid.UUID) error
}
