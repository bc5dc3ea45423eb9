package implementation

import (
	"context"
	"time"

	"notification-hub-be/internal/model"
	"notification-hub-be/internal/repository"
	"notification-hub-be/internal/repository/scope"

	"gorm.io/gorm"
)

type NotificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) repository.NotificationRepository {
	return &NotificationRepositoryImpl{db: db}
}

func (r *NotificationRepositoryImpl) Save(ctx context.Context, notification *model.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *NotificationRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ?", id).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *NotificationRepositoryImpl) FindVisibleForUser(ctx context.Context, username string, page, pageSize int) ([]model.Notification, error) {
	var notifications []model.Notification
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Scopes(scope.VisibleTo(username), scope.OrderByCreatedDesc, scope.Paginate(page, pageSize)).
		Find(&notifications).Error
	return notifications, err
}

// CountUnreadForUser runs as one statement, so under read-committed it sees a
// single consistent snapshot of notifications and read marks.
func (r *NotificationRepositoryImpl) CountUnreadForUser(ctx context.Context, username string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Scopes(scope.VisibleTo(username), scope.UnreadBy(username)).
		Count(&count).Error
	return count, err
}

func (r *NotificationRepositoryImpl) FindUnreadIDsForUser(ctx context.Context, username string) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Scopes(scope.VisibleTo(username), scope.UnreadBy(username)).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
