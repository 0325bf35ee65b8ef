// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"errors"
	"net/http"

	"pipx-client/internal/domain/subscription"
	"pipx-client/internal/middleware"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/response"
	"pipx-client/internal/repository/memory"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	repo   *memory.SubscriptionRepository
	logger *zap.Logger
}

func NewSubscriptionHandler(repo *memory.SubscriptionRepository, logger *zap.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionHandler{repo: repo, logger: logger}
}

// ListPlans returns every plan, or the plans of provider_id
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	plans := h.repo.Plans(c.Request.Context(), c.Query("provider_id"))
	response.Success(c, http.StatusOK, "plans retrieved", plans)
}

// Subscribe starts a subscription. Subscribing again to an active plan
// returns the existing subscription with 200.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req subscription.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	sub, created, err := h.repo.Subscribe(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "plan not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "subscription failed", err)
		return
	}

	if !created {
		response.Success(c, http.StatusOK, "already subscribed", sub)
		return
	}
	h.logger.Info("subscription started",
		zap.String("user_id", userID),
		zap.String("plan_id", sub.PlanID),
		zap.Time("expires_at", sub.ExpiresAt),
	)
	response.Success(c, http.StatusCreated, "subscription started", sub)
}

func (h *SubscriptionHandler) MySubscriptions(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	response.Success(c, http.StatusOK, "subscriptions retrieved", h.repo.Mine(c.Request.Context(), userID))
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	if err := h.repo.Cancel(c.Request.Context(), userID, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, xerrors.ErrNotFound):
			response.NotFound(c, "subscription not found")
		case errors.Is(err, xerrors.ErrInvalidInput):
			response.ValidationError(c, "subscription is not active", err)
		default:
			response.Error(c, http.StatusInternalServerError, "cancel failed", err)
		}
		return
	}
	response.Success(c, http.StatusOK, "subscription cancelled", nil)
}
