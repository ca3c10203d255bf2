package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func notificationConditions(filter notification.QueryFilter) conditions {
	var cond conditions
	cond.add("user_type = ?", filter.UserType)
	if filter.UserID.Valid {
		cond.add("(user_id IS NULL OR user_id = ?)", filter.UserID.Int64)
	}
	if filter.UnreadOnly {
		cond.add("NOT is_read")
	}
	return cond
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notifs ...notification.Notification) error {
	if len(notifs) == 0 {
		return nil
	}
	q := `INSERT INTO notifications (user_type, user_id, title, message, is_read, created_at)
		VALUES (:user_type, :user_id, :title, :message, :is_read, :created_at)`
	_, err := repo.db.NamedExecContext(ctx, q, notifs)
	return errors.Wrap(err, "inserting notifications")
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	cond := notificationConditions(filter)
	q := "SELECT id, user_type, user_id, title, message, is_read, created_at FROM notifications" +
		cond.where() + " ORDER BY created_at DESC, id DESC"
	notifs := make([]notification.Notification, 0)
	if err := repo.db.SelectContext(ctx, &notifs, q, cond.args...); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	return notifs, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id int64) (notification.Notification, error) {
	var n notification.Notification
	q := "SELECT id, user_type, user_id, title, message, is_read, created_at FROM notifications WHERE id = $1"
	if err := repo.db.GetContext(ctx, &n, q, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "selecting notification")
	}
	return n, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, filter notification.QueryFilter, ids ...int64) error {
	cond := notificationConditions(filter)
	if len(ids) > 0 {
		cond.add("id = ANY(?)", pq.Int64Array(ids))
	}
	_, err := repo.db.ExecContext(ctx, "UPDATE notifications SET is_read = true"+cond.where(), cond.args...)
	return errors.Wrap(err, "marking notifications read")
}

func (repo *notificationRepository) CountUnread(ctx context.Context, filter notification.QueryFilter) (int, error) {
	filter.UnreadOnly = true
	cond := notificationConditions(filter)
	var count int
	if err := repo.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM notifications"+cond.where(), cond.args...); err != nil {
		return 0, errors.Wrap(err, "counting notifications")
	}
	return count, nil
}
