package model

import (
	"time"

	"feature-flags-be/internal/entity"

	"gorm.io/datatypes"
)

// RealtimeUsage is one hourly bucket of per-minute evaluation counters.
type RealtimeUsage struct {
	Organization string                                            `gorm:"type:varchar(255);primaryKey"`
	Hour         string                                            `gorm:"type:varchar(13);primaryKey"` // YYYY-MM-DDTHH
	Features     datatypes.JSONType[map[string]entity.FeatureUsage] `gorm:"not null"`
	UpdatedAt    time.Time                                         `gorm:"autoUpdateTime;index"`
}

func (RealtimeUsage) TableName() string {
	return "realtime_usages"
}
