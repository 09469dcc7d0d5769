package implementation

import (
	"context"
	"errors"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/mapper"
	"feature-flags-be/internal/model"
	"feature-flags-be/internal/repository/contract"
	"feature-flags-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ExperimentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ExperimentMapper
}

func NewExperimentRepository(db *gorm.DB) contract.ExperimentRepository {
	return &ExperimentRepositoryImpl{
		db:     db,
		mapper: mapper.NewExperimentMapper(),
	}
}

func (r *ExperimentRepositoryImpl) Create(ctx context.Context, experiment *entity.Experiment) error {
	m := r.mapper.ToModel(experiment)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*experiment = *r.mapper.ToEntity(m)
	return nil
}

func (r *ExperimentRepositoryImpl) FindByTrackingKey(ctx context.Context, organizationId, trackingKey string) (*entity.Experiment, error) {
	var m model.Experiment
	query := r.db.WithContext(ctx)
	query = specification.ByOrganization{OrganizationID: organizationId}.Apply(query)
	query = specification.ByTrackingKey{TrackingKey: trackingKey}.Apply(query)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}
