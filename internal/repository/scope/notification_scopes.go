package scope

import (
	"notification-hub-be/internal/model"

	"gorm.io/gorm"
)

// VisibleTo keeps broadcasts plus notifications targeted at username.
func VisibleTo(username string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(notifications.target_type = ? OR (notifications.target_type = ? AND notifications.target_username = ?))",
			model.TargetAll, model.TargetUser, username)
	}
}

// UnreadBy drops notifications username already has a read mark for.
func UnreadBy(username string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("NOT EXISTS (SELECT 1 FROM notification_reads r WHERE r.notification_id = notifications.id AND r.username = ?)", username)
	}
}
