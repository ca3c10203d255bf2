package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/eskwela/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func matchNotification(n notification.Notification, filter notification.QueryFilter) bool {
	if n.UserType != filter.UserType {
		return false
	}
	if filter.UserID.Valid && n.UserID.Valid && n.UserID.Int64 != filter.UserID.Int64 {
		return false
	}
	return !(filter.UnreadOnly && n.IsRead)
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, notifs ...notification.Notification) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, n := range notifs {
		n := n
		n.ID = repo.db.nextID("notifications")
		repo.db.notifications[n.ID] = &n
	}
	return nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if matchNotification(*n, filter) {
			notifs = append(notifs, *n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool {
		if !notifs[i].CreatedAt.Equal(notifs[j].CreatedAt) {
			return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
		}
		return notifs[i].ID > notifs[j].ID
	})
	return notifs, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id int64) (notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if n, ok := repo.db.notifications[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) MarkRead(_ context.Context, filter notification.QueryFilter, ids ...int64) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if len(ids) > 0 {
		for _, id := range ids {
			if n, ok := repo.db.notifications[id]; ok && matchNotification(*n, filter) {
				n.IsRead = true
			}
		}
		return nil
	}
	for _, n := range repo.db.notifications {
		if matchNotification(*n, filter) {
			n.IsRead = true
		}
	}
	return nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, filter notification.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	filter.UnreadOnly = true
	var count int
	for _, n := range repo.db.notifications {
		if matchNotification(*n, filter) {
			count++
		}
	}
	return count, nil
}
