package mapper

import (
	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/model"
)

type WebhookMapper struct{}

func NewWebhookMapper() *WebhookMapper {
	return &WebhookMapper{}
}

func (m *WebhookMapper) ToEntity(model *model.Webhook) *entity.Webhook {
	if model == nil {
		return nil
	}
	return &entity.Webhook{
		Id:           model.Id,
		Organization: model.Organization,
		Name:         model.Name,
		Endpoint:     model.Endpoint,
		SigningKey:   model.SigningKey,
		Project:      model.Project,
		Environment:  model.Environment,
		LastSuccess:  model.LastSuccess,
		Error:        model.Error,
		CreatedAt:    model.CreatedAt,
	}
}

func (m *WebhookMapper) ToModel(entity *entity.Webhook) *model.Webhook {
	if entity == nil {
		return nil
	}
	return &model.Webhook{
		Id:           entity.Id,
		Organization: entity.Organization,
		Name:         entity.Name,
		Endpoint:     entity.Endpoint,
		SigningKey:   entity.SigningKey,
		Project:      entity.Project,
		Environment:  entity.Environment,
		LastSuccess:  entity.LastSuccess,
		Error:        entity.Error,
		CreatedAt:    entity.CreatedAt,
	}
}

func (m *WebhookMapper) ToEntities(models []*model.Webhook) []*entity.Webhook {
	entities := make([]*entity.Webhook, 0, len(models))
	for _, mdl := range models {
		entities = append(entities, m.ToEntity(mdl))
	}
	return entities
}
