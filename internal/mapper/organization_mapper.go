package mapper

import (
	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/model"

	"gorm.io/datatypes"
)

type OrganizationMapper struct{}

func NewOrganizationMapper() *OrganizationMapper {
	return &OrganizationMapper{}
}

func (m *OrganizationMapper) ToEntity(model *model.Organization) *entity.Organization {
	if model == nil {
		return nil
	}
	return &entity.Organization{
		Id:           model.Id,
		Name:         model.Name,
		Environments: model.Settings.Data().Environments,
		CreatedAt:    model.CreatedAt,
	}
}

func (m *OrganizationMapper) ToModel(entity *entity.Organization) *model.Organization {
	if entity == nil {
		return nil
	}
	return &model.Organization{
		Id:        entity.Id,
		Name:      entity.Name,
		Settings:  datatypes.NewJSONType(model.OrganizationSettings{Environments: entity.Environments}),
		CreatedAt: entity.CreatedAt,
	}
}

func (m *OrganizationMapper) ApiKeyToEntity(model *model.ApiKey) *entity.ApiKey {
	if model == nil {
		return nil
	}
	return &entity.ApiKey{
		Key:          model.Key,
		Organization: model.Organization,
		Environment:  model.Environment,
		Description:  model.Description,
		CreatedAt:    model.CreatedAt,
	}
}

func (m *OrganizationMapper) ApiKeyToModel(entity *entity.ApiKey) *model.ApiKey {
	if entity == nil {
		return nil
	}
	return &model.ApiKey{
		Key:          entity.Key,
		Organization: entity.Organization,
		Environment:  entity.Environment,
		Description:  entity.Description,
		CreatedAt:    entity.CreatedAt,
	}
}
