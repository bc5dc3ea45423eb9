package scope

import "gorm.io/gorm"

func OrderByCreatedDesc(db *gorm.DB) *gorm.DB {
	// id breaks ties between notifications created in the same instant.
	return db.Order("created_at DESC").Order("id DESC")
}

// Paginate applies a zero-based page window.
func Paginate(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 0 {
			page = 0
		}
		return db.Offset(page * pageSize).Limit(pageSize)
	}
}
