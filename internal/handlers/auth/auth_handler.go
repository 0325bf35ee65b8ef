// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"pipx-client/internal/domain/auth"
	"pipx-client/internal/middleware"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/pkg/response"
	"pipx-client/internal/repository/memory"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SessionKiller disconnects the realtime peers of a user.
type SessionKiller interface {
	ForceLogout(userID, reason string)
}

// OTPMailer delivers one-time codes. *email.EmailSender satisfies it.
type OTPMailer interface {
	SendOTP(to, code string, ttl time.Duration) error
}

type Options struct {
	RefreshTTL time.Duration
	OTPTTL     time.Duration

	// ExposeOTP returns the generated code in the response body.
	ExposeOTP bool

	// Mailer is optional. Without one codes are only logged or exposed.
	Mailer OTPMailer
}

type AuthHandler struct {
	users     *memory.AuthRepository
	providers *memory.ProviderRepository
	tokens    *jwt.Generator
	hub       SessionKiller
	opts      Options
	logger    *zap.Logger
}

func NewAuthHandler(
	users *memory.AuthRepository,
	providers *memory.ProviderRepository,
	tokens *jwt.Generator,
	hub SessionKiller,
	opts Options,
	logger *zap.Logger,
) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 5 * time.Minute
	}
	return &AuthHandler{
		users:     users,
		providers: providers,
		tokens:    tokens,
		hub:       hub,
		opts:      opts,
		logger:    logger,
	}
}

// ========== Registration ==========

// Register creates an account and logs it in straight away
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	userType := strings.ToUpper(req.UserType)
	switch userType {
	case "":
		userType = auth.UserTypeUser
	case auth.UserTypeUser, auth.UserTypeSignalProvider:
	default:
		response.ValidationError(c, "invalid user_type", xerrors.ErrInvalidInput)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "registration failed", err)
		return
	}

	u := &memory.UserRecord{
		User: auth.User{
			Email:    req.Email,
			FullName: req.FullName,
			Username: req.Username,
			UserType: userType,
		},
		PasswordHash: string(hash),
	}
	if err := h.users.CreateUser(c.Request.Context(), u); err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) {
			response.Error(c, http.StatusConflict, "email already registered", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "registration failed", err)
		return
	}

	h.logger.Info("user registered",
		zap.String("user_id", u.ID),
		zap.String("user_type", u.UserType),
	)
	h.issue(c, http.StatusCreated, "registration successful", u, req.Device)
}

// ========== Login ==========

func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	u, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		h.logger.Warn("login failed", zap.String("email", req.Email), zap.String("ip", c.ClientIP()))
		response.Unauthorized(c, "invalid email or password")
		return
	}

	h.issue(c, http.StatusOK, "login successful", u, req.Device)
}

// RequestOTP generates a one-time code. The answer is the same whether or
// not the email is registered.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req auth.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	var data interface{}
	if _, err := h.users.FindByEmail(c.Request.Context(), req.Email); err == nil {
		code, err := generateOTP()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "could not generate code", err)
			return
		}
		h.users.SaveOTP(c.Request.Context(), req.Email, code, h.opts.OTPTTL)
		h.logger.Info("otp issued", zap.String("email", req.Email))
		if h.opts.Mailer != nil {
			if err := h.opts.Mailer.SendOTP(req.Email, code, h.opts.OTPTTL); err != nil {
				h.logger.Error("failed to mail otp", zap.String("email", req.Email), zap.Error(err))
			}
		}
		if h.opts.ExposeOTP {
			data = gin.H{"code": code, "expires_in": int(h.opts.OTPTTL.Seconds())}
		}
	}

	response.Success(c, http.StatusOK, "if the email exists, a code has been sent", data)
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req auth.OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.users.ConsumeOTP(c.Request.Context(), req.Email, req.Code); err != nil {
		response.Unauthorized(c, "invalid or expired code")
		return
	}
	u, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid or expired code")
		return
	}

	h.issue(c, http.StatusOK, "login successful", u, req.Device)
}

// issue signs the token pair, records the session and writes the login
// style response.
func (h *AuthHandler) issue(c *gin.Context, status int, message string, u *memory.UserRecord, device string) {
	if device == "" {
		device = c.GetHeader("X-Device-ID")
	}

	access, jti, err := h.tokens.GenerateAccessToken(u.ID, u.UserType, device)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to issue token", err)
		return
	}
	var refresh string
	if h.opts.RefreshTTL > 0 {
		refresh, _, err = h.tokens.GenerateRefreshToken(u.ID, device, h.opts.RefreshTTL)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "failed to issue token", err)
			return
		}
	}

	h.users.AddSession(c.Request.Context(), u.ID, jti, time.Now().Add(h.tokens.Ttl))
	h.logger.Info("session issued",
		zap.String("user_id", u.ID),
		zap.String("jti", jti),
		zap.String("device", device),
	)

	response.Session(c, status, message, access, u.UserType, refresh)
}

// ========== Logout ==========

// Logout revokes the calling session
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	jti := middleware.MustGetJTI(c)

	h.users.RevokeSession(c.Request.Context(), userID, jti)
	response.Success(c, http.StatusOK, "logout successful", nil)
}

// LogoutAll revokes every session of the user and disconnects its realtime
// peers with a force logout.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	n := h.users.RevokeAll(c.Request.Context(), userID)
	if h.hub != nil {
		h.hub.ForceLogout(userID, "logout_all")
	}

	h.logger.Info("all sessions revoked", zap.String("user_id", userID), zap.Int("sessions", n))
	response.Success(c, http.StatusOK, "all sessions logged out", gin.H{"revoked": n})
}

// ========== Profile ==========

// GetMe returns current user profile (requires auth)
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	u, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}

	profile := u.User
	profile.Followers = len(h.providers.Followers(c.Request.Context(), userID))
	profile.Following = h.providers.Following(c.Request.Context(), userID)
	response.Success(c, http.StatusOK, "profile retrieved", profile)
}

// PurgeRevoked drops revocations of tokens that expired anyway. It runs
// until ctx ends.
func (h *AuthHandler) PurgeRevoked(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := h.users.PurgeExpired(ctx); n > 0 {
				h.logger.Debug("purged revoked sessions", zap.Int("count", n))
			}
		}
	}
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
