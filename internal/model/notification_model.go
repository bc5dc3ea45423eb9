package model

import "time"

type NotificationTargetType string

const (
	TargetAll  NotificationTargetType = "ALL"
	TargetUser NotificationTargetType = "USER"
)

// Notification is created once per send and never modified afterwards.
// TargetUsername is set only for TargetUser, already normalized.
type Notification struct {
	ID             int64                  `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetType     NotificationTargetType `gorm:"type:varchar(20);not null;index:idx_notifications_target,priority:1" json:"target_type"`
	TargetUsername *string                `gorm:"type:varchar(100);index:idx_notifications_target,priority:2" json:"target_username,omitempty"`
	Title          string                 `gorm:"type:varchar(120);not null" json:"title"`
	Body           string                 `gorm:"type:varchar(2000);not null" json:"body"`
	Sender         string                 `gorm:"type:varchar(100);not null" json:"sender"`
	CreatedAt      time.Time              `gorm:"not null;index:idx_notifications_created_at" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// VisibleTo reports whether username (normalized) can see n.
func (n Notification) VisibleTo(username string) bool {
	if n.TargetType == TargetAll {
		return true
	}
	return n.TargetType == TargetUser && n.TargetUsername != nil && *n.TargetUsername == username
}

// Target renders the recipient the way clients display it.
func (n Notification) Target() string {
	if n.TargetType == TargetAll || n.TargetUsername == nil {
		return string(TargetAll)
	}
	return *n.TargetUsername
}

// NotificationRead marks one notification as read by one user. The
// (notification_id, username) pair is unique.
type NotificationRead struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	NotificationID int64     `gorm:"not null;uniqueIndex:uk_notification_reads_notification_username,priority:1;index:idx_notification_reads_notification_id" json:"notification_id"`
	Username       string    `gorm:"type:varchar(100);not null;uniqueIndex:uk_notification_reads_notification_username,priority:2;index:idx_notification_reads_username" json:"username"`
	ReadAt         time.Time `gorm:"not null" json:"read_at"`
}

func (NotificationRead) TableName() string {
	return "notification_reads"
}
