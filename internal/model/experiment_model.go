package model

import (
	"time"

	"feature-flags-be/internal/entity"

	"gorm.io/datatypes"
)

type Experiment struct {
	Id           string                                            `gorm:"type:varchar(255);primaryKey"`
	Organization string                                            `gorm:"type:varchar(255);not null;uniqueIndex:idx_experiments_org_tracking_key,priority:1"`
	TrackingKey  string                                            `gorm:"type:varchar(255);not null;uniqueIndex:idx_experiments_org_tracking_key,priority:2"`
	Name         string                                            `gorm:"type:varchar(255)"`
	Status       string                                            `gorm:"type:varchar(20);default:'draft'"`
	Variations   datatypes.JSONType[[]entity.ExperimentVariation] `gorm:"not null"`
	DateCreated  time.Time                                         `gorm:"autoCreateTime"`
	DateUpdated  time.Time                                         `gorm:"autoUpdateTime"`
}

func (Experiment) TableName() string {
	return "experiments"
}
