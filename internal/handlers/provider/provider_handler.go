// internal/handlers/provider/provider_handler.go
package provider

import (
	"context"
	"errors"
	"net/http"

	"pipx-client/internal/domain/notification"
	"pipx-client/internal/middleware"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/response"
	"pipx-client/internal/repository/memory"

	"github.com/gin-gonic/gin"
)

// Notifier stores and pushes a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, n *notification.Notification)
}

type ProviderHandler struct {
	providers *memory.ProviderRepository
	users     *memory.AuthRepository
	notifier  Notifier
}

func NewProviderHandler(providers *memory.ProviderRepository, users *memory.AuthRepository, notifier Notifier) *ProviderHandler {
	return &ProviderHandler{
		providers: providers,
		users:     users,
		notifier:  notifier,
	}
}

func (h *ProviderHandler) GetProfile(c *gin.Context) {
	viewer, _ := middleware.GetUserID(c)

	p, err := h.providers.Profile(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "provider retrieved", p)
}

func (h *ProviderHandler) Follow(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	providerID := c.Param("id")

	res, err := h.providers.SetFollow(c.Request.Context(), providerID, userID, true)
	if err != nil {
		writeError(c, err)
		return
	}

	name := "Someone"
	if u, err := h.users.FindByID(c.Request.Context(), userID); err == nil {
		name = u.FullName
	}
	h.notifier.Notify(c.Request.Context(), providerID, &notification.Notification{
		Title:    "New follower",
		Message:  name + " started following you",
		Type:     notification.TypeFollow,
		Metadata: map[string]interface{}{"user_id": userID},
	})

	response.Success(c, http.StatusOK, "provider followed", res)
}

func (h *ProviderHandler) Unfollow(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	res, err := h.providers.SetFollow(c.Request.Context(), c.Param("id"), userID, false)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "provider unfollowed", res)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "provider not found")
	case errors.Is(err, xerrors.ErrInvalidInput):
		response.ValidationError(c, "you cannot follow yourself", err)
	default:
		response.Error(c, http.StatusInternalServerError, "provider request failed", err)
	}
}
