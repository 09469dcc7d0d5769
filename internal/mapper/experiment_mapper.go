package mapper

import (
	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/model"

	"gorm.io/datatypes"
)

type ExperimentMapper struct{}

func NewExperimentMapper() *ExperimentMapper {
	return &ExperimentMapper{}
}

func (m *ExperimentMapper) ToEntity(model *model.Experiment) *entity.Experiment {
	if model == nil {
		return nil
	}
	return &entity.Experiment{
		Id:           model.Id,
		Organization: model.Organization,
		TrackingKey:  model.TrackingKey,
		Name:         model.Name,
		Status:       model.Status,
		Variations:   model.Variations.Data(),
		DateCreated:  model.DateCreated,
		DateUpdated:  model.DateUpdated,
	}
}

func (m *ExperimentMapper) ToModel(entity *entity.Experiment) *model.Experiment {
	if entity == nil {
		return nil
	}
	return &model.Experiment{
		Id:           entity.Id,
		Organization: entity.Organization,
		TrackingKey:  entity.TrackingKey,
		Name:         entity.Name,
		Status:       entity.Status,
		Variations:   datatypes.NewJSONType(entity.Variations),
		DateCreated:  entity.DateCreated,
		DateUpdated:  entity.DateUpdated,
	}
}
