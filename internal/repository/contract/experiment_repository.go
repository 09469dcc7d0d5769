package contract

import (
	"context"

	"feature-flags-be/internal/entity"
)

type ExperimentRepository interface {
	Create(ctx context.Context, experiment *entity.Experiment) error
	FindByTrackingKey(ctx context.Context, organizationId, trackingKey string) (*entity.Experiment, error)
}
