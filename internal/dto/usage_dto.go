package dto

import "feature-flags-be/internal/entity"

// FeatureRealtimeUsage is the 30 minute window of one feature, oldest minute first.
type FeatureRealtimeUsage struct {
	Realtime []entity.UsageSample `json:"realtime"`
}

// RecordUsageRequest is sent by SDKs: feature key -> counts for the current minute.
type RecordUsageRequest struct {
	Features map[string]entity.UsageSample `json:"features" validate:"required"`
}
