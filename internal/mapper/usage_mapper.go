package mapper

import (
	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/model"

	"gorm.io/datatypes"
)

type UsageMapper struct{}

func NewUsageMapper() *UsageMapper {
	return &UsageMapper{}
}

func (m *UsageMapper) ToEntity(model *model.RealtimeUsage) *entity.UsageBucket {
	if model == nil {
		return nil
	}
	features := model.Features.Data()
	if features == nil {
		features = map[string]entity.FeatureUsage{}
	}
	return &entity.UsageBucket{
		Organization: model.Organization,
		Hour:         model.Hour,
		Features:     features,
		UpdatedAt:    model.UpdatedAt,
	}
}

func (m *UsageMapper) ToModel(entity *entity.UsageBucket) *model.RealtimeUsage {
	if entity == nil {
		return nil
	}
	return &model.RealtimeUsage{
		Organization: entity.Organization,
		Hour:         entity.Hour,
		Features:     datatypes.NewJSONType(entity.Features),
		UpdatedAt:    entity.UpdatedAt,
	}
}
