package specification

import "gorm.io/gorm"

// ByProject restricts to one project tag. An empty project means no filter.
type ByProject struct {
	Project string
}

func (s ByProject) Apply(db *gorm.DB) *gorm.DB {
	if s.Project == "" {
		return db
	}
	return db.Where("project = ?", s.Project)
}

type ByTrackingKey struct {
	TrackingKey string
}

func (s ByTrackingKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("tracking_key = ?", s.TrackingKey)
}
