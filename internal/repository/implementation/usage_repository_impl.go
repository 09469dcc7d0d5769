package implementation

import (
	"context"
	"errors"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/mapper"
	"feature-flags-be/internal/model"
	"feature-flags-be/internal/repository/contract"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.UsageMapper
}

func NewUsageRepository(db *gorm.DB) contract.UsageRepository {
	return &UsageRepositoryImpl{
		db:     db,
		mapper: mapper.NewUsageMapper(),
	}
}

func (r *UsageRepositoryImpl) find(db *gorm.DB, organizationId, hour string) (*entity.UsageBucket, error) {
	var m model.RealtimeUsage
	err := db.Where("organization = ? AND hour = ?", organizationId, hour).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *UsageRepositoryImpl) FindByHour(ctx context.Context, organizationId, hour string) (*entity.UsageBucket, error) {
	return r.find(r.db.WithContext(ctx), organizationId, hour)
}

func (r *UsageRepositoryImpl) FindByHourForUpdate(ctx context.Context, organizationId, hour string) (*entity.UsageBucket, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), organizationId, hour)
}

func (r *UsageRepositoryImpl) Create(ctx context.Context, bucket *entity.UsageBucket) error {
	m := r.mapper.ToModel(bucket)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*bucket = *r.mapper.ToEntity(m)
	return nil
}

func (r *UsageRepositoryImpl) Update(ctx context.Context, bucket *entity.UsageBucket) error {
	return r.db.WithContext(ctx).
		Model(&model.RealtimeUsage{}).
		Where("organization = ? AND hour = ?", bucket.Organization, bucket.Hour).
		Update("features", datatypes.NewJSONType(bucket.Features)).Error
}

func (r *UsageRepositoryImpl) DeleteBefore(ctx context.Context, hour string) (int64, error) {
	res := r.db.WithContext(ctx).Where("hour < ?", hour).Delete(&model.RealtimeUsage{})
	return res.RowsAffected, res.Error
}
