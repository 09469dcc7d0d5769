package contract

import (
	"context"
	"time"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/repository/specification"

	"github.com/google/uuid"
)

type WebhookRepository interface {
	Create(ctx context.Context, webhook *entity.Webhook) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Webhook, error)
	MarkSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailure(ctx context.Context, id uuid.UUID, message string) error
}
