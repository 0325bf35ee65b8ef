// internal/service/notification/service.go
package notification

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"pipx-client/internal/domain/notification"
	"pipx-client/internal/pkg/gateway"
)

// NotificationService wraps the notification inbox endpoints
type NotificationService struct {
	api gateway.Requester
}

func NewNotificationService(api gateway.Requester) *NotificationService {
	return &NotificationService{api: api}
}

// List returns one page of notifications and whether another page exists.
func (s *NotificationService) List(ctx context.Context, page int, unreadOnly bool) ([]notification.Notification, bool, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{"page": {strconv.Itoa(page)}}
	if unreadOnly {
		q.Set("is_read", "false")
	}

	resp, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/notifications", Query: q})
	if err != nil {
		return nil, false, err
	}
	var items []notification.Notification
	if err := gateway.DecodeData(resp, &items); err != nil {
		return nil, false, err
	}
	return items, resp.NextPage(), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	resp, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/notifications/unread-count"})
	if err != nil {
		return 0, err
	}
	var c notification.UnreadCount
	if err := gateway.DecodeData(resp, &c); err != nil {
		return 0, err
	}
	return c.Unread, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	_, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodPatch, Path: "/notifications/" + url.PathEscape(id) + "/read"})
	return err
}

func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	_, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodPost, Path: "/notifications/read-all"})
	return err
}
