package contract

import (
	"context"

	"feature-flags-be/internal/entity"
)

type UsageRepository interface {
	FindByHour(ctx context.Context, organizationId, hour string) (*entity.UsageBucket, error)
	// FindByHourForUpdate locks the row when called inside a transaction.
	FindByHourForUpdate(ctx context.Context, organizationId, hour string) (*entity.UsageBucket, error)
	Create(ctx context.Context, bucket *entity.UsageBucket) error
	Update(ctx context.Context, bucket *entity.UsageBucket) error
	// DeleteBefore removes buckets whose hour sorts before the given hour key.
	DeleteBefore(ctx context.Context, hour string) (int64, error)
}
