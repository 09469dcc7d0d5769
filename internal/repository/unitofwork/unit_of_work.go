package unitofwork

import (
	"context"

	"feature-flags-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	FeatureRepository() contract.FeatureRepository
	OrganizationRepository() contract.OrganizationRepository
	UsageRepository() contract.UsageRepository
	ExperimentRepository() contract.ExperimentRepository
	WebhookRepository() contract.WebhookRepository
}
