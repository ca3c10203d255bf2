// Package notification stores in-app notifications addressed to an account, or to every
// account of a type when no user ID is set.
package notification

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
)

var ErrNotFound = core.NewNotFoundError("notification")

type Notification struct {
	ID        int64        `json:"id" db:"id"`
	UserType  account.Type `json:"user_type" db:"user_type"`
	UserID    null.Int64   `json:"user_id" db:"user_id"` // null: every account of UserType
	Title     string       `json:"title" db:"title"`
	Message   string       `json:"message" db:"message"`
	IsRead    bool         `json:"is_read" db:"is_read"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// VisibleTo reports whether n is addressed to p.
func (n Notification) VisibleTo(p account.Principal) bool {
	return n.UserType == p.Type && (!n.UserID.Valid || n.UserID.Int64 == p.ID)
}

type QueryFilter struct {
	UserType   account.Type
	UserID     null.Int64 // when set, broadcast rows of UserType are included
	UnreadOnly bool       `query:"unread_only"`
}

type Repository interface {
	CreateNotifications(ctx context.Context, notifs ...Notification) error
	// QueryNotifications returns the matching notifications, newest first.
	QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
	GetNotification(ctx context.Context, id int64) (Notification, error)
	// MarkRead marks the notifications with the given IDs as read;
	// every notification matching filter when no ID is given.
	MarkRead(ctx context.Context, filter QueryFilter, ids ...int64) error
	CountUnread(ctx context.Context, filter QueryFilter) (int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NotifyAdmins addresses a notification to every admin.
func (svc *Service) NotifyAdmins(ctx context.Context, title, msg string) error {
	return svc.Create(ctx, Notification{UserType: account.TypeAdmin, Title: title, Message: msg})
}

// Notify addresses a notification to a single account.
func (svc *Service) Notify(ctx context.Context, typ account.Type, userID int64, title, msg string) error {
	return svc.Create(ctx, Notification{UserType: typ, UserID: null.Int64From(userID), Title: title, Message: msg})
}

func (svc *Service) Create(ctx context.Context, notifs ...Notification) error {
	now := time.Now().UTC()
	for i := range notifs {
		notifs[i].CreatedAt = now
	}
	return svc.repo.CreateNotifications(ctx, notifs...)
}

// Query returns the notifications visible to p.
func (svc *Service) Query(ctx context.Context, p account.Principal, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, filterFor(p, unreadOnly))
}

func (svc *Service) CountUnread(ctx context.Context, p account.Principal) (int, error) {
	return svc.repo.CountUnread(ctx, filterFor(p, true))
}

// MarkRead marks a notification visible to p as read.
func (svc *Service) MarkRead(ctx context.Context, p account.Principal, id int64) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if !n.VisibleTo(p) {
		return Notification{}, ErrNotFound
	}
	if err = svc.repo.MarkRead(ctx, filterFor(p, false), id); err != nil {
		return Notification{}, err
	}
	n.IsRead = true
	return n, nil
}

// MarkAllRead marks every notification visible to p as read.
func (svc *Service) MarkAllRead(ctx context.Context, p account.Principal) error {
	return svc.repo.MarkRead(ctx, filterFor(p, true))
}

func filterFor(p account.Principal, unreadOnly bool) QueryFilter {
	return QueryFilter{UserType: p.Type, UserID: null.Int64From(p.ID), UnreadOnly: unreadOnly}
}
