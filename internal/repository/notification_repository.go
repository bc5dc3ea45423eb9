package repository

import (
	"context"
	"errors"

	"notification-hub-be/internal/model"
)

// ErrDuplicateReadMark is returned by SaveReadMark when the
// (notification, username) pair already exists.
var ErrDuplicateReadMark = errors.New("notification already marked read")

// NotificationRepository persists notifications and answers visibility
// queries. Every username argument is expected to be normalized already.
type NotificationRepository interface {
	// Save assigns ID and defaults CreatedAt to now when zero.
	Save(ctx context.Context, notification *model.Notification) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
	// FindVisibleForUser pages through ALL notifications plus those targeted at
	// username, newest first. Page is zero-based.
	FindVisibleForUser(ctx context.Context, username string, page, pageSize int) ([]model.Notification, error)
	// CountUnreadForUser counts visible notifications with no read mark for
	// username, computed in a single statement.
	CountUnreadForUser(ctx context.Context, username string) (int64, error)
	// FindUnreadIDsForUser lists visible notification ids without a read mark.
	FindUnreadIDsForUser(ctx context.Context, username string) ([]int64, error)
}

// NotificationReadRepository stores per-user read marks.
type NotificationReadRepository interface {
	ExistsReadMark(ctx context.Context, notificationID int64, username string) (bool, error)
	SaveReadMark(ctx context.Context, mark *model.NotificationRead) error
	// SaveReadMarks inserts marks in one batch, skipping pairs that already
	// exist, and returns how many rows were created.
	SaveReadMarks(ctx context.Context, marks []model.NotificationRead) (int64, error)
	// FindReadNotificationIDs returns the subset of ids username has read.
	FindReadNotificationIDs(ctx context.Context, username string, ids []int64) (map[int64]struct{}, error)
}
