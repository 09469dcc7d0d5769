package model

import (
	"time"

	"feature-flags-be/internal/entity"

	"gorm.io/datatypes"
)

type OrganizationSettings struct {
	Environments []entity.Environment `json:"environments,omitempty"`
}

type Organization struct {
	Id        string                                   `gorm:"type:varchar(255);primaryKey"`
	Name      string                                   `gorm:"type:varchar(255);not null"`
	Settings  datatypes.JSONType[OrganizationSettings] `gorm:"not null"`
	CreatedAt time.Time                                `gorm:"autoCreateTime"`
}

func (Organization) TableName() string {
	return "organizations"
}

type ApiKey struct {
	Key          string    `gorm:"type:varchar(255);primaryKey"`
	Organization string    `gorm:"type:varchar(255);not null;index"`
	Environment  string    `gorm:"type:varchar(255);not null;default:'production'"`
	Description  string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (ApiKey) TableName() string {
	return "api_keys"
}
