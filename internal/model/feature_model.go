// FILE: internal/model/feature_model.go
// GORM model for the features table
package model

import (
	"time"

	"feature-flags-be/internal/entity"

	"gorm.io/datatypes"
)

// Feature is keyed by (organization, id); the same key may exist in several organizations.
type Feature struct {
	Id                  string                                                   `gorm:"type:varchar(255);primaryKey"`
	Organization        string                                                   `gorm:"type:varchar(255);primaryKey;index:idx_features_org_project,priority:1"`
	DefaultValue        string                                                   `gorm:"type:text"`
	ValueType           string                                                   `gorm:"type:varchar(20);not null;default:'boolean'"`
	Description         string                                                   `gorm:"type:text"`
	Project             string                                                   `gorm:"type:varchar(255);index:idx_features_org_project,priority:2"`
	EnvironmentSettings datatypes.JSONType[map[string]entity.EnvironmentSettings] `gorm:"not null"`
	DateCreated         time.Time                                                `gorm:"not null"`
	DateUpdated         time.Time                                                `gorm:"not null"`
	Version             int64                                                    `gorm:"not null;default:1"`
}

func (Feature) TableName() string {
	return "features"
}
