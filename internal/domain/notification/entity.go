// internal/domain/notification/entity.go
package notification

import "time"

type NotificationType string

const (
	TypeSignal       NotificationType = "signal"
	TypeLike         NotificationType = "like"
	TypeComment      NotificationType = "comment"
	TypeFollow       NotificationType = "follow"
	TypeSubscription NotificationType = "subscription"
	TypeSystem       NotificationType = "system"
)

type Notification struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      NotificationType       `json:"type"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IsRead    bool                   `json:"is_read"`
	CreatedAt time.Time              `json:"created_at"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
}

type UnreadCount struct {
	Unread int `json:"unread"`
}
