// internal/handlers/signal/signal_handler.go
package signal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pipx-client/internal/domain/notification"
	"pipx-client/internal/domain/signal"
	"pipx-client/internal/middleware"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/response"
	"pipx-client/internal/repository/memory"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxChartSize = 5 << 20

// Notifier stores and pushes a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, n *notification.Notification)
}

type SignalHandler struct {
	signals   *memory.SignalRepository
	users     *memory.AuthRepository
	providers *memory.ProviderRepository
	notifier  Notifier
	logger    *zap.Logger
}

func NewSignalHandler(
	signals *memory.SignalRepository,
	users *memory.AuthRepository,
	providers *memory.ProviderRepository,
	notifier Notifier,
	logger *zap.Logger,
) *SignalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalHandler{
		signals:   signals,
		users:     users,
		providers: providers,
		notifier:  notifier,
		logger:    logger,
	}
}

// ========== Feed ==========

// ListSignals returns the feed, newest first
func (h *SignalHandler) ListSignals(c *gin.Context) {
	h.list(c, "")
}

// ListProviderSignals returns the signals of one provider
func (h *SignalHandler) ListProviderSignals(c *gin.Context) {
	h.list(c, c.Param("id"))
}

func (h *SignalHandler) list(c *gin.Context, providerID string) {
	viewer, _ := middleware.GetUserID(c)
	page, limit := pageParams(c)

	items, hasNext := h.signals.List(c.Request.Context(), providerID, c.Query("pair"), viewer, page, limit)
	response.Page(c, "signals retrieved", items, hasNext)
}

func (h *SignalHandler) GetSignal(c *gin.Context) {
	viewer, _ := middleware.GetUserID(c)

	s, err := h.signals.FindByID(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		writeError(c, err, "failed to get signal")
		return
	}
	response.Success(c, http.StatusOK, "signal retrieved", s)
}

// ========== Create / Delete ==========

// CreateSignal accepts multipart form data with an optional chart file
func (h *SignalHandler) CreateSignal(c *gin.Context) {
	providerID := middleware.MustGetUserID(c)

	s, err := parseSignalForm(c)
	if err != nil {
		response.ValidationError(c, "invalid signal", err)
		return
	}

	if fh, err := c.FormFile("chart"); err == nil {
		if fh.Size > maxChartSize {
			response.ValidationError(c, "chart image too large", xerrors.ErrInvalidInput)
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.ValidationError(c, "unreadable chart image", err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			response.ValidationError(c, "unreadable chart image", err)
			return
		}
		name := h.signals.SaveChart(c.Request.Context(), fh.Filename, memory.Chart{
			ContentType: http.DetectContentType(data),
			Data:        data,
		})
		s.ChartURL = "/media/charts/" + name
	}

	if u, err := h.users.FindByID(c.Request.Context(), providerID); err == nil {
		s.ProviderName = u.FullName
	}
	s.ProviderID = providerID

	if err := h.signals.Create(c.Request.Context(), s); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to create signal", err)
		return
	}

	h.logger.Info("signal created",
		zap.String("signal_id", s.ID),
		zap.String("provider_id", providerID),
		zap.String("pair", s.Pair),
	)

	for _, follower := range h.providers.Followers(c.Request.Context(), providerID) {
		h.notifier.Notify(c.Request.Context(), follower, &notification.Notification{
			Title:   "New signal",
			Message: fmt.Sprintf("%s posted %s %s", s.ProviderName, s.Direction, s.Pair),
			Type:    notification.TypeSignal,
			Metadata: map[string]interface{}{
				"signal_id":   s.ID,
				"provider_id": providerID,
			},
		})
	}

	response.Success(c, http.StatusCreated, "signal created", s)
}

func (h *SignalHandler) DeleteSignal(c *gin.Context) {
	providerID := middleware.MustGetUserID(c)

	if err := h.signals.Delete(c.Request.Context(), c.Param("id"), providerID); err != nil {
		writeError(c, err, "failed to delete signal")
		return
	}
	response.NoContent(c)
}

// GetChart serves an uploaded chart image
func (h *SignalHandler) GetChart(c *gin.Context) {
	ch, err := h.signals.Chart(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.NotFound(c, "chart not found")
		return
	}
	c.Data(http.StatusOK, ch.ContentType, ch.Data)
}

// ========== Likes ==========

func (h *SignalHandler) Like(c *gin.Context) {
	h.setLike(c, true)
}

func (h *SignalHandler) Unlike(c *gin.Context) {
	h.setLike(c, false)
}

func (h *SignalHandler) setLike(c *gin.Context, liked bool) {
	userID := middleware.MustGetUserID(c)
	id := c.Param("id")

	likes, err := h.signals.SetLike(c.Request.Context(), id, userID, liked)
	if err != nil {
		writeError(c, err, "failed to update like")
		return
	}

	if liked {
		h.notifyOwner(c, id, userID, notification.TypeLike, "liked your signal")
	}
	response.Success(c, http.StatusOK, "like updated", gin.H{"signal_id": id, "liked": liked, "likes": likes})
}

// ========== Comments ==========

func (h *SignalHandler) ListComments(c *gin.Context) {
	page, limit := pageParams(c)

	items, hasNext, err := h.signals.Comments(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		writeError(c, err, "failed to get comments")
		return
	}
	response.Page(c, "comments retrieved", items, hasNext)
}

func (h *SignalHandler) AddComment(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req signal.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		response.ValidationError(c, "comment text is required", xerrors.ErrInvalidInput)
		return
	}

	comment := &signal.Comment{SignalID: c.Param("id"), UserID: userID, Text: text}
	if u, err := h.users.FindByID(c.Request.Context(), userID); err == nil {
		comment.UserName = u.FullName
	}
	if err := h.signals.AddComment(c.Request.Context(), comment); err != nil {
		writeError(c, err, "failed to add comment")
		return
	}

	h.notifyOwner(c, comment.SignalID, userID, notification.TypeComment, "commented on your signal")
	response.Success(c, http.StatusCreated, "comment added", comment)
}

// notifyOwner tells the provider of signalID about activity by actorID.
func (h *SignalHandler) notifyOwner(c *gin.Context, signalID, actorID string, typ notification.NotificationType, what string) {
	s, err := h.signals.FindByID(c.Request.Context(), signalID, "")
	if err != nil || s.ProviderID == actorID {
		return
	}
	name := "Someone"
	if u, err := h.users.FindByID(c.Request.Context(), actorID); err == nil {
		name = u.FullName
	}
	h.notifier.Notify(c.Request.Context(), s.ProviderID, &notification.Notification{
		Title:    s.Pair,
		Message:  name + " " + what,
		Type:     typ,
		Metadata: map[string]interface{}{"signal_id": signalID, "user_id": actorID},
	})
}

// --- Helper functions ---

func parseSignalForm(c *gin.Context) (*signal.Signal, error) {
	s := &signal.Signal{
		Pair:        strings.ToUpper(strings.TrimSpace(c.PostForm("pair"))),
		Direction:   signal.Direction(strings.ToUpper(c.PostForm("direction"))),
		Description: c.PostForm("description"),
	}
	if s.Pair == "" {
		return nil, fmt.Errorf("pair is required: %w", xerrors.ErrInvalidInput)
	}
	if s.Direction != signal.DirectionBuy && s.Direction != signal.DirectionSell {
		return nil, fmt.Errorf("direction must be BUY or SELL: %w", xerrors.ErrInvalidInput)
	}

	var err error
	if s.EntryPrice, err = parsePrice(c.PostForm("entry_price"), true); err != nil {
		return nil, fmt.Errorf("entry_price: %w", err)
	}
	if s.StopLoss, err = parsePrice(c.PostForm("stop_loss"), false); err != nil {
		return nil, fmt.Errorf("stop_loss: %w", err)
	}
	if s.TakeProfit, err = parsePrice(c.PostForm("take_profit"), false); err != nil {
		return nil, fmt.Errorf("take_profit: %w", err)
	}
	return s, nil
}

func parsePrice(v string, required bool) (float64, error) {
	if v == "" {
		if required {
			return 0, xerrors.ErrInvalidInput
		}
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || (required && f == 0) {
		return 0, xerrors.ErrInvalidInput
	}
	return f, nil
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func writeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "signal not found")
	case errors.Is(err, xerrors.ErrForbidden):
		response.Forbidden(c, "not your signal")
	default:
		response.Error(c, http.StatusInternalServerError, message, err)
	}
}
