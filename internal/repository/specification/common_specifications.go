package specification

import (
	"gorm.io/gorm"
)

// ByID filters by primary id
type ByID struct {
	ID string
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// ByOrganization scopes every tenant-owned table
type ByOrganization struct {
	OrganizationID string
}

func (s ByOrganization) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("organization = ?", s.OrganizationID)
}
