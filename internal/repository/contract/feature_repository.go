// FILE: internal/repository/contract/feature_repository.go
// Repository interface for feature flags
package contract

import (
	"context"
	"errors"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/repository/specification"
)

var (
	// ErrVersionConflict is returned when a feature changed between read and write.
	ErrVersionConflict = errors.New("feature was modified concurrently")
	// ErrDuplicateFeature is returned by Create when the organization already has the key.
	ErrDuplicateFeature = errors.New("feature already exists")
)

// Columns accepted by FeatureRepository.UpdateFields.
const (
	FeatureColumnDefaultValue        = "default_value"
	FeatureColumnValueType           = "value_type"
	FeatureColumnDescription         = "description"
	FeatureColumnProject             = "project"
	FeatureColumnEnvironmentSettings = "environment_settings"
)

type FeatureRepository interface {
	Create(ctx context.Context, feature *entity.Feature) error
	// UpdateFields writes only the named columns plus date_updated, guarded by feature.Version.
	// On success feature.Version is incremented.
	UpdateFields(ctx context.Context, feature *entity.Feature, columns ...string) error
	Delete(ctx context.Context, organizationId, id string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Feature, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Feature, error)
}
