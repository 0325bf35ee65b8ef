// internal/handlers/notification/notification_handler.go
package notification

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"pipx-client/internal/domain/notification"
	wstypes "pipx-client/internal/domain/websocket"
	"pipx-client/internal/middleware"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/response"
	"pipx-client/internal/repository/memory"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pusher delivers a realtime message to every connection of a user.
type Pusher interface {
	SendToUser(userID string, msg *wstypes.WSMessage)
}

type NotificationHandler struct {
	repo   *memory.NotificationRepository
	hub    Pusher
	logger *zap.Logger
}

func NewNotificationHandler(repo *memory.NotificationRepository, hub Pusher, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{
		repo:   repo,
		hub:    hub,
		logger: logger,
	}
}

// Notify stores n for userID and pushes it with the new unread count.
func (h *NotificationHandler) Notify(ctx context.Context, userID string, n *notification.Notification) {
	if err := h.repo.Create(ctx, userID, n); err != nil {
		h.logger.Error("failed to store notification", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if h.hub == nil {
		return
	}
	if msg, err := wstypes.NewMessage(wstypes.EventTypeNotification, n); err == nil {
		h.hub.SendToUser(userID, msg)
	}
	h.pushCount(ctx, userID)
}

func (h *NotificationHandler) pushCount(ctx context.Context, userID string) {
	if h.hub == nil {
		return
	}
	msg, err := wstypes.NewMessage(wstypes.EventTypeNotificationCount, wstypes.NotificationCountData{
		Unread: h.repo.UnreadCount(ctx, userID),
	})
	if err == nil {
		h.hub.SendToUser(userID, msg)
	}
}

// GetNotifications lists the notifications of the current user. is_read=false
// restricts the list to unread ones.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	unreadOnly := c.Query("is_read") == "false"

	items, hasNext := h.repo.List(c.Request.Context(), userID, unreadOnly, page, limit)
	if items == nil {
		items = []notification.Notification{}
	}
	response.Page(c, "notifications retrieved", items, hasNext)
}

func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	response.Success(c, http.StatusOK, "unread count retrieved", notification.UnreadCount{
		Unread: h.repo.UnreadCount(c.Request.Context(), userID),
	})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	if err := h.repo.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "notification not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to mark as read", err)
		return
	}

	h.pushCount(c.Request.Context(), userID)
	response.Success(c, http.StatusOK, "notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	n := h.repo.MarkAllRead(c.Request.Context(), userID)
	h.pushCount(c.Request.Context(), userID)
	response.Success(c, http.StatusOK, "all notifications marked as read", gin.H{"updated": n})
}
