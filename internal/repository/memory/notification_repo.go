// internal/repository/memory/notification_repo.go
package memory

import (
	"context"

	"pipx-client/internal/domain/notification"
	xerrors "pipx-client/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
)

type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores n for userID, newest first.
func (r *NotificationRepository) Create(ctx context.Context, userID string, n *notification.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n.ID = ulid.Make().String()
	n.CreatedAt = r.db.now().UTC()
	r.db.notifications[userID] = append([]*notification.Notification{n}, r.db.notifications[userID]...)
	return nil
}

func (r *NotificationRepository) List(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]notification.Notification, bool) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var matched []notification.Notification
	for _, n := range r.db.notifications[userID] {
		if unreadOnly && n.IsRead {
			continue
		}
		matched = append(matched, *n)
	}
	start, end, hasNext := paginate(len(matched), page, limit)
	return matched[start:end], hasNext
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) int {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, item := range r.db.notifications[userID] {
		if !item.IsRead {
			n++
		}
	}
	return n
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, n := range r.db.notifications[userID] {
		if n.ID == id {
			r.markRead(n)
			return nil
		}
	}
	return xerrors.ErrNotFound
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) int {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	count := 0
	for _, n := range r.db.notifications[userID] {
		if !n.IsRead {
			r.markRead(n)
			count++
		}
	}
	return count
}

func (r *NotificationRepository) markRead(n *notification.Notification) {
	if n.IsRead {
		return
	}
	now := r.db.now().UTC()
	n.IsRead = true
	n.ReadAt = &now
}
