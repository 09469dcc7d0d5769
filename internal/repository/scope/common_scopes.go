package scope

import "gorm.io/gorm"

func OrderByCreatedAsc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// OrderByID gives listings a stable order for text primary keys.
func OrderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
