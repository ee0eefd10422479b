package scope

import "gorm.io/gorm"

func OrderByCreatedAsc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// InLogOrder orders the update log the way it was written.
func InLogOrder(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}
