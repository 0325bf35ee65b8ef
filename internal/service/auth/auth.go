// internal/service/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pipx-client/internal/domain/auth"
	"pipx-client/internal/pkg/authbus"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/gateway"
	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/pkg/session"

	"go.uber.org/zap"
)

const logoutTimeout = 10 * time.Second

// ExpiryScheduler is satisfied by *expiry.Scheduler.
type ExpiryScheduler interface {
	Arm(token string, onFire func()) (cancel func())
	Stop()
}

// EventBus is satisfied by *authbus.Bus.
type EventBus interface {
	Subscribe(h authbus.Handler) (unsubscribe func())
	PublishExpired() bool
	ResetEpisode()
}

// AuthService owns the client session: it establishes it from login
// responses, rehydrates it on start and tears it down on logout or expiry.
type AuthService struct {
	api       gateway.Requester
	store     *session.Store
	inspector *jwt.Inspector
	scheduler ExpiryScheduler
	bus       EventBus
	device    string
	logger    *zap.Logger

	mu          sync.RWMutex
	state       auth.State
	unsubscribe func()
	onChange    []func(auth.State)
}

func NewAuthService(
	api gateway.Requester,
	store *session.Store,
	inspector *jwt.Inspector,
	scheduler ExpiryScheduler,
	bus EventBus,
	device string,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		api:       api,
		store:     store,
		inspector: inspector,
		scheduler: scheduler,
		bus:       bus,
		device:    device,
		logger:    logger,
	}
}

// ========== Lifecycle ==========

// Start subscribes to expiry events and restores a persisted session.
// Storage failures degrade to logged out.
func (s *AuthService) Start(ctx context.Context) auth.State {
	s.mu.Lock()
	if s.unsubscribe == nil {
		s.unsubscribe = s.bus.Subscribe(s.handleExpired)
	}
	s.mu.Unlock()

	rec, res := s.store.LoadRecord(ctx)
	if res.Err != nil {
		s.logger.Warn("could not read stored session, starting logged out", zap.Error(res.Err))
		return s.State()
	}
	if !rec.HasToken() {
		return s.State()
	}

	if s.inspector.IsExpired(rec.AuthToken) {
		s.logger.Info("stored session expired, clearing")
		if res := s.store.ClearSession(ctx); !res.OK() {
			s.logger.Warn("failed to clear expired session", zap.Strings("failed", res.Failed))
		}
		return s.State()
	}

	s.setState(auth.State{LoggedIn: true, UserType: rec.UserType})
	s.scheduler.Arm(rec.AuthToken, s.expire)

	s.logger.Info("session restored", zap.String("user_type", rec.UserType))
	return s.State()
}

// Stop unsubscribes from the bus and disarms the expiry timer. The stored
// session is left in place.
func (s *AuthService) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.scheduler.Stop()
}

// OnChange registers fn to be called after every state transition.
func (s *AuthService) OnChange(fn func(auth.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *AuthService) State() auth.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *AuthService) IsLoggedIn() bool {
	return s.State().LoggedIn
}

func (s *AuthService) UserType() string {
	return s.State().UserType
}

// ========== Login ==========

// Login exchanges credentials for a session.
func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest) (auth.State, error) {
	if req.Email == "" || req.Password == "" {
		return auth.State{}, fmt.Errorf("email and password are required: %w", xerrors.ErrInvalidInput)
	}
	if req.Device == "" {
		req.Device = s.device
	}

	resp, err := s.api.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		JSON:   req,
		Public: true,
	})
	if err != nil {
		return auth.State{}, err
	}
	return s.establish(ctx, resp)
}

// RequestOTP asks the server to email a one-time login code.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("email is required: %w", xerrors.ErrInvalidInput)
	}
	_, err := s.api.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/otp/request",
		JSON:   auth.OTPRequest{Email: email},
		Public: true,
	})
	return err
}

// VerifyOTP exchanges a one-time code for a session.
func (s *AuthService) VerifyOTP(ctx context.Context, req *auth.OTPVerifyRequest) (auth.State, error) {
	if req.Device == "" {
		req.Device = s.device
	}
	resp, err := s.api.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/otp/verify",
		JSON:   req,
		Public: true,
	})
	if err != nil {
		return auth.State{}, err
	}
	return s.establish(ctx, resp)
}

// Register creates an account. When the server logs the new account in
// straight away the session is established as for Login.
func (s *AuthService) Register(ctx context.Context, req *auth.RegisterRequest) (auth.State, error) {
	if req.UserType == "" {
		req.UserType = auth.UserTypeUser
	}
	if req.Device == "" {
		req.Device = s.device
	}
	resp, err := s.api.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		JSON:   req,
		Public: true,
	})
	if err != nil {
		return auth.State{}, err
	}
	if resp.Token == "" {
		return s.State(), nil
	}
	return s.establish(ctx, resp)
}

// Me returns the profile of the logged in user.
func (s *AuthService) Me(ctx context.Context) (*auth.User, error) {
	resp, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/auth/me"})
	if err != nil {
		return nil, err
	}
	var user auth.User
	if err := gateway.DecodeData(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// establish persists the token set from a login style response and arms the
// expiry timer.
func (s *AuthService) establish(ctx context.Context, resp *gateway.Response) (auth.State, error) {
	if resp.Token == "" {
		return auth.State{}, fmt.Errorf("login response carried no token: %w", xerrors.ErrInvalidToken)
	}

	rec := session.Record{
		AuthToken:    resp.Token,
		UserType:     session.NormalizeUserType(resp.UserType),
		RefreshToken: resp.RefreshToken,
	}
	res := s.store.SaveRecord(ctx, rec)
	if res.Err != nil || res.FailedKey(session.KeyAuthToken) {
		// A session without its token is no session; drop what was written.
		s.setState(auth.State{})
		s.scheduler.Stop()
		if cres := s.store.ClearSession(ctx); !cres.OK() {
			s.logger.Warn("failed to clear partial session", zap.Strings("failed", cres.Failed))
		}
		s.logger.Error("could not persist auth token, login discarded", zap.Strings("failed", res.Failed))
		if res.Err != nil {
			return auth.State{}, fmt.Errorf("persist session: %w", res.Err)
		}
		return auth.State{}, fmt.Errorf("persist session: auth token not saved: %w", xerrors.ErrStorage)
	}
	if res.Degraded() {
		s.logger.Warn("session persisted partially", zap.Strings("failed", res.Failed))
	}

	s.setState(auth.State{LoggedIn: true, UserType: rec.UserType})

	if _, ok := s.inspector.ExpiresAt(rec.AuthToken); ok {
		s.scheduler.Arm(rec.AuthToken, s.expire)
	} else {
		s.logger.Warn("token has no readable expiry, no logout timer armed")
	}

	s.logger.Info("logged in", zap.String("user_type", rec.UserType))
	return s.State(), nil
}

// ========== Logout ==========

// Logout ends the session on the server (best effort) and locally. The
// in-memory state is reset before anything else so IsLoggedIn is false as
// soon as Logout is entered.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.logout(ctx, "/auth/logout")
}

// LogoutAll ends every session of the account, then the local one.
func (s *AuthService) LogoutAll(ctx context.Context) error {
	return s.logout(ctx, "/auth/logout-all")
}

func (s *AuthService) logout(ctx context.Context, path string) error {
	s.setState(auth.State{})
	s.scheduler.Stop()

	if _, ok := s.store.Get(ctx, session.KeyAuthToken); ok {
		rctx, cancel := context.WithTimeout(ctx, logoutTimeout)
		_, err := s.api.Do(rctx, &gateway.Request{Method: http.MethodPost, Path: path})
		cancel()
		if err != nil && !gateway.IsAuthExpired(err) {
			s.logger.Warn("remote logout failed, clearing local session anyway", zap.Error(err))
		}
	}

	return s.clearLocal(ctx)
}

// handleExpired runs for every expiry episode published on the bus.
func (s *AuthService) handleExpired(ev authbus.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
	defer cancel()

	s.logger.Info("session expired, logging out", zap.String("event", string(ev)))

	s.setState(auth.State{})
	s.scheduler.Stop()
	if err := s.clearLocal(ctx); err != nil {
		s.logger.Error("failed to clear session after expiry", zap.Error(err))
	}
	s.bus.ResetEpisode()
}

func (s *AuthService) clearLocal(ctx context.Context) error {
	res := s.store.ClearSession(ctx)
	if res.Err != nil {
		return fmt.Errorf("clear session: %w", res.Err)
	}
	if res.Degraded() {
		s.logger.Warn("session cleared partially", zap.Strings("failed", res.Failed))
	}
	return nil
}

// expire is the scheduler callback.
func (s *AuthService) expire() {
	s.bus.PublishExpired()
}

func (s *AuthService) setState(st auth.State) {
	s.mu.Lock()
	changed := st != s.state
	s.state = st
	listeners := append([]func(auth.State){}, s.onChange...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(st)
	}
}
