package implementation

import (
	"context"
	"time"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/mapper"
	"feature-flags-be/internal/model"
	"feature-flags-be/internal/repository/contract"
	"feature-flags-be/internal/repository/scope"
	"feature-flags-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WebhookRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.WebhookMapper
}

func NewWebhookRepository(db *gorm.DB) contract.WebhookRepository {
	return &WebhookRepositoryImpl{
		db:     db,
		mapper: mapper.NewWebhookMapper(),
	}
}

func (r *WebhookRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *WebhookRepositoryImpl) Create(ctx context.Context, webhook *entity.Webhook) error {
	m := r.mapper.ToModel(webhook)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*webhook = *r.mapper.ToEntity(m)
	return nil
}

func (r *WebhookRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Webhook, error) {
	var models []*model.Webhook
	query := r.applySpecifications(r.db.WithContext(ctx).Scopes(scope.OrderByCreatedAsc), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *WebhookRepositoryImpl) MarkSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Webhook{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"last_success": at, "error": ""}).Error
}

func (r *WebhookRepositoryImpl) MarkFailure(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&model.Webhook{}).
		Where("id = ?", id).
		Update("error", message).Error
}
