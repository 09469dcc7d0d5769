// FILE: internal/repository/implementation/feature_repository_impl.go
// Implementation of FeatureRepository
package implementation

import (
	"context"
	"errors"
	"fmt"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/mapper"
	"feature-flags-be/internal/model"
	"feature-flags-be/internal/repository/contract"
	"feature-flags-be/internal/repository/scope"
	"feature-flags-be/internal/repository/specification"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FeatureRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.FeatureMapper
}

func NewFeatureRepository(db *gorm.DB) contract.FeatureRepository {
	return &FeatureRepositoryImpl{
		db:     db,
		mapper: mapper.NewFeatureMapper(),
	}
}

func (r *FeatureRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *FeatureRepositoryImpl) Create(ctx context.Context, feature *entity.Feature) error {
	if feature.Version == 0 {
		feature.Version = 1
	}
	m := r.mapper.ToModel(feature)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return contract.ErrDuplicateFeature
		}
		return err
	}
	*feature = *r.mapper.ToEntity(m)
	return nil
}

func (r *FeatureRepositoryImpl) UpdateFields(ctx context.Context, feature *entity.Feature, columns ...string) error {
	values := map[string]interface{}{
		"date_updated": feature.DateUpdated,
		"version":      feature.Version + 1,
	}
	for _, column := range columns {
		switch column {
		case contract.FeatureColumnDefaultValue:
			values[column] = feature.DefaultValue
		case contract.FeatureColumnValueType:
			values[column] = string(feature.ValueType)
		case contract.FeatureColumnDescription:
			values[column] = feature.Description
		case contract.FeatureColumnProject:
			values[column] = feature.Project
		case contract.FeatureColumnEnvironmentSettings:
			values[column] = datatypes.NewJSONType(feature.EnvironmentSettings)
		default:
			return fmt.Errorf("unknown feature column %q", column)
		}
	}

	res := r.db.WithContext(ctx).
		Model(&model.Feature{}).
		Where("organization = ? AND id = ? AND version = ?", feature.Organization, feature.Id, feature.Version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrVersionConflict
	}
	feature.Version++
	return nil
}

func (r *FeatureRepositoryImpl) Delete(ctx context.Context, organizationId, id string) error {
	return r.db.WithContext(ctx).
		Where("organization = ? AND id = ?", organizationId, id).
		Delete(&model.Feature{}).Error
}

func (r *FeatureRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Feature, error) {
	var m model.Feature
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *FeatureRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Feature, error) {
	var models []*model.Feature
	query := r.applySpecifications(r.db.WithContext(ctx).Scopes(scope.OrderByID), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
