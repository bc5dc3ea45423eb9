package implementation

import (
	"context"
	"errors"
	"time"

	"notification-hub-be/internal/model"
	"notification-hub-be/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationReadRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationReadRepository(db *gorm.DB) repository.NotificationReadRepository {
	return &NotificationReadRepositoryImpl{db: db}
}

func (r *NotificationReadRepositoryImpl) ExistsReadMark(ctx context.Context, notificationID int64, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.NotificationRead{}).
		Where("notification_id = ? AND username = ?", notificationID, username).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *NotificationReadRepositoryImpl) SaveReadMark(ctx context.Context, mark *model.NotificationRead) error {
	if mark.ReadAt.IsZero() {
		mark.ReadAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Create(mark).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicateReadMark
	}
	return err
}

func (r *NotificationReadRepositoryImpl) SaveReadMarks(ctx context.Context, marks []model.NotificationRead) (int64, error) {
	if len(marks) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for i := range marks {
		if marks[i].ReadAt.IsZero() {
			marks[i].ReadAt = now
		}
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}, {Name: "username"}},
			DoNothing: true,
		}).
		CreateInBatches(marks, 500)
	return result.RowsAffected, result.Error
}

func (r *NotificationReadRepositoryImpl) FindReadNotificationIDs(ctx context.Context, username string, ids []int64) (map[int64]struct{}, error) {
	read := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return read, nil
	}

	var found []int64
	err := r.db.WithContext(ctx).
		Model(&model.NotificationRead{}).
		Where("username = ? AND notification_id IN ?", username, ids).
		Pluck("notification_id", &found).Error
	if err != nil {
		return nil, err
	}

	for _, id := range found {
		read[id] = struct{}{}
	}
	return read, nil
}
