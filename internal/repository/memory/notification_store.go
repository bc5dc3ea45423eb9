package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"notification-hub-be/internal/model"
	"notification-hub-be/internal/repository"
)

type readKey struct {
	notificationID int64
	username       string
}

// NotificationStore holds notifications and read marks in process. One mutex
// guards both so unread counts see a consistent snapshot.
type NotificationStore struct {
	mu            sync.RWMutex
	notifications []model.Notification
	reads         map[readKey]model.NotificationRead
	nextID        int64
	nextReadID    int64
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		reads: make(map[readKey]model.NotificationRead),
	}
}

// Notifications and Reads expose the store through both repository contracts.
func (s *NotificationStore) Notifications() repository.NotificationRepository {
	return notificationRepo{s}
}

func (s *NotificationStore) Reads() repository.NotificationReadRepository {
	return readRepo{s}
}

type notificationRepo struct{ s *NotificationStore }

func (r notificationRepo) Save(ctx context.Context, notification *model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	notification.ID = s.nextID
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	stored := *notification
	if notification.TargetUsername != nil {
		target := *notification.TargetUsername
		stored.TargetUsername = &target
	}
	s.notifications = append(s.notifications, stored)
	return nil
}

func (r notificationRepo) ExistsByID(_ context.Context, id int64) (bool, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	return id > 0 && id <= s.nextID, nil
}

func (r notificationRepo) FindVisibleForUser(_ context.Context, username string, page, pageSize int) ([]model.Notification, error) {
	s := r.s
	s.mu.RLock()
	visible := make([]model.Notification, 0)
	for _, n := range s.notifications {
		if n.VisibleTo(username) {
			visible = append(visible, n)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].ID > visible[j].ID
		}
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})

	if page < 0 {
		page = 0
	}
	start := page * pageSize
	if start >= len(visible) {
		return []model.Notification{}, nil
	}
	end := start + pageSize
	if end > len(visible) {
		end = len(visible)
	}
	return visible[start:end], nil
}

func (r notificationRepo) CountUnreadForUser(ctx context.Context, username string) (int64, error) {
	ids, err := r.FindUnreadIDsForUser(ctx, username)
	return int64(len(ids)), err
}

func (r notificationRepo) FindUnreadIDsForUser(_ context.Context, username string) ([]int64, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0)
	for _, n := range s.notifications {
		if !n.VisibleTo(username) {
			continue
		}
		if _, read := s.reads[readKey{n.ID, username}]; read {
			continue
		}
		ids = append(ids, n.ID)
	}
	return ids, nil
}

type readRepo struct{ s *NotificationStore }

func (r readRepo) ExistsReadMark(_ context.Context, notificationID int64, username string) (bool, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reads[readKey{notificationID, username}]
	return ok, nil
}

func (r readRepo) SaveReadMark(ctx context.Context, mark *model.NotificationRead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.insertLocked(mark) {
		return repository.ErrDuplicateReadMark
	}
	return nil
}

func (r readRepo) SaveReadMarks(ctx context.Context, marks []model.NotificationRead) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var created int64
	for i := range marks {
		if s.insertLocked(&marks[i]) {
			created++
		}
	}
	return created, nil
}

func (r readRepo) FindReadNotificationIDs(_ context.Context, username string, ids []int64) (map[int64]struct{}, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	read := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.reads[readKey{id, username}]; ok {
			read[id] = struct{}{}
		}
	}
	return read, nil
}

func (s *NotificationStore) insertLocked(mark *model.NotificationRead) bool {
	key := readKey{mark.NotificationID, mark.Username}
	if _, exists := s.reads[key]; exists {
		return false
	}
	s.nextReadID++
	mark.ID = s.nextReadID
	if mark.ReadAt.IsZero() {
		mark.ReadAt = time.Now().UTC()
	}
	s.reads[key] = *mark
	return true
}
