package contract

import (
	"context"

	"feature-flags-be/internal/entity"
)

type OrganizationRepository interface {
	Create(ctx context.Context, org *entity.Organization) error
	FindByID(ctx context.Context, id string) (*entity.Organization, error)
	CreateApiKey(ctx context.Context, key *entity.ApiKey) error
	FindApiKey(ctx context.Context, key string) (*entity.ApiKey, error)
}
