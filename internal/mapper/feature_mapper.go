// FILE: internal/mapper/feature_mapper.go
// Mapper for Feature entity <-> model conversion
package mapper

import (
	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/model"

	"gorm.io/datatypes"
)

type FeatureMapper struct{}

func NewFeatureMapper() *FeatureMapper {
	return &FeatureMapper{}
}

func (m *FeatureMapper) ToEntity(model *model.Feature) *entity.Feature {
	if model == nil {
		return nil
	}
	settings := model.EnvironmentSettings.Data()
	if settings == nil {
		settings = map[string]entity.EnvironmentSettings{}
	}
	return &entity.Feature{
		Id:                  model.Id,
		Organization:        model.Organization,
		DefaultValue:        model.DefaultValue,
		ValueType:           entity.ValueType(model.ValueType),
		Description:         model.Description,
		Project:             model.Project,
		EnvironmentSettings: settings,
		DateCreated:         model.DateCreated,
		DateUpdated:         model.DateUpdated,
		Version:             model.Version,
	}
}

func (m *FeatureMapper) ToModel(entity *entity.Feature) *model.Feature {
	if entity == nil {
		return nil
	}
	return &model.Feature{
		Id:                  entity.Id,
		Organization:        entity.Organization,
		DefaultValue:        entity.DefaultValue,
		ValueType:           string(entity.ValueType),
		Description:         entity.Description,
		Project:             entity.Project,
		EnvironmentSettings: datatypes.NewJSONType(entity.EnvironmentSettings),
		DateCreated:         entity.DateCreated,
		DateUpdated:         entity.DateUpdated,
		Version:             entity.Version,
	}
}

func (m *FeatureMapper) ToEntities(models []*model.Feature) []*entity.Feature {
	entities := make([]*entity.Feature, 0, len(models))
	for _, mdl := range models {
		entities = append(entities, m.ToEntity(mdl))
	}
	return entities
}
