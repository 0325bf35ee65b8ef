// internal/mockapi/server.go
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pipx-client/internal/config"
	"pipx-client/internal/domain/auth"
	"pipx-client/internal/domain/subscription"
	authHandler "pipx-client/internal/handlers/auth"
	notifyHandler "pipx-client/internal/handlers/notification"
	providerHandler "pipx-client/internal/handlers/provider"
	signalHandler "pipx-client/internal/handlers/signal"
	subscriptionHandler "pipx-client/internal/handlers/subscription"
	wsHandler "pipx-client/internal/handlers/websocket"
	"pipx-client/internal/middleware"
	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/repository/memory"
	"pipx-client/internal/service/email"
	"pipx-client/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const purgeInterval = time.Minute

// Demo accounts created when seeding.
const (
	DemoPassword      = "password123"
	DemoProviderEmail = "provider@pipx.dev"
	DemoUserEmail     = "trader@pipx.dev"
)

// Server is a local stand-in for the PipX API.
type Server struct {
	cfg    config.MockConfig
	engine *gin.Engine
	http   *http.Server
	logger *zap.Logger

	hub         *websocket.Hub
	authHandler *authHandler.AuthHandler
	users       *memory.AuthRepository
	plans       *memory.SubscriptionRepository

	cancel context.CancelFunc
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(cfg.Mock.JWT)
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Repositories -----
	store := memory.NewDB()
	authRepo := memory.NewAuthRepository(store)
	signalRepo := memory.NewSignalRepository(store)
	providerRepo := memory.NewProviderRepository(store)
	notifyRepo := memory.NewNotificationRepository(store)
	subRepo := memory.NewSubscriptionRepository(store)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(jwtManager.Verifier, authRepo)

	// ----- Mail -----
	var mailer authHandler.OTPMailer
	if cfg.Mock.SMTP.Enabled() {
		mailer = email.NewEmailSender(cfg.Mock.SMTP)
		logger.Info("otp mail enabled", zap.String("smtp_host", cfg.Mock.SMTP.Host))
	}

	// ----- Handlers -----
	notifHandler := notifyHandler.NewNotificationHandler(notifyRepo, hub, logger)
	authHandlerInst := authHandler.NewAuthHandler(authRepo, providerRepo, jwtManager.Generator, hub, authHandler.Options{
		RefreshTTL: cfg.Mock.RefreshTTL,
		OTPTTL:     cfg.Mock.OTPTTL,
		ExposeOTP:  !cfg.IsProduction(),
		Mailer:     mailer,
	}, logger)

	handlers := &Handlers{
		AuthHandler:         authHandlerInst,
		NotifHandler:        notifHandler,
		SignalHandler:       signalHandler.NewSignalHandler(signalRepo, authRepo, providerRepo, notifHandler, logger),
		ProviderHandler:     providerHandler.NewProviderHandler(providerRepo, authRepo, notifHandler),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(subRepo, logger),
		WSHandler:           wsHandler.NewWebSocketHandler(hub, authMiddleware, logger),
		AuthMiddleware:      authMiddleware,
	}

	engine := gin.New()
	engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
	SetupRouter(engine, handlers)

	s := &Server{
		cfg:         cfg.Mock,
		engine:      engine,
		logger:      logger,
		hub:         hub,
		authHandler: authHandlerInst,
		users:       authRepo,
		plans:       subRepo,
	}

	if cfg.Mock.Seed {
		if err := s.seed(context.Background()); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}
	return s, nil
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// Run starts the hub and background jobs. They stop when ctx ends or on
// Shutdown.
func (s *Server) Run(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(ctx)
	go s.authHandler.PurgeRevoked(ctx, purgeInterval)
}

// ListenAndServe runs the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("mock api listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// seed creates a demo provider with two plans and a demo trader.
func (s *Server) seed(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	provider := &memory.UserRecord{
		User: auth.User{
			Email:      DemoProviderEmail,
			FullName:   "Demo Provider",
			Username:   "demo_fx",
			UserType:   auth.UserTypeSignalProvider,
			IsVerified: true,
		},
		PasswordHash: string(hash),
		Bio:          "Swing trades on majors and gold.",
	}
	trader := &memory.UserRecord{
		User: auth.User{
			Email:    DemoUserEmail,
			FullName: "Demo Trader",
			Username: "trader",
			UserType: auth.UserTypeUser,
		},
		PasswordHash: string(hash),
	}
	for _, u := range []*memory.UserRecord{provider, trader} {
		if err := s.users.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("create %s: %w", u.Email, err)
		}
	}

	s.plans.CreatePlan(ctx, &subscription.Plan{
		ProviderID:   provider.ID,
		Name:         "Pro Monthly",
		Price:        29,
		Currency:     "USD",
		BillingCycle: subscription.BillingMonthly,
		Features:     []string{"All signals", "Chart analysis"},
	})
	s.plans.CreatePlan(ctx, &subscription.Plan{
		ProviderID:   provider.ID,
		Name:         "Pro Yearly",
		Price:        290,
		Currency:     "USD",
		BillingCycle: subscription.BillingYearly,
		Features:     []string{"All signals", "Chart analysis", "Priority support"},
	})

	s.logger.Info("demo data seeded",
		zap.String("provider_id", provider.ID),
		zap.String("user_id", trader.ID),
	)
	return nil
}
