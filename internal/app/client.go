// internal/app/client.go
package app

import (
	"context"
	"fmt"
	"net/http"

	"pipx-client/internal/config"
	"pipx-client/internal/db"
	"pipx-client/internal/pkg/authbus"
	"pipx-client/internal/pkg/expiry"
	"pipx-client/internal/pkg/gateway"
	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/pkg/session"
	authUsecase "pipx-client/internal/service/auth"
	notifyUsecase "pipx-client/internal/service/notification"
	providerUsecase "pipx-client/internal/service/provider"
	signalUsecase "pipx-client/internal/service/signal"
	subscriptionUsecase "pipx-client/internal/service/subscription"
	"pipx-client/internal/websocket"

	"go.uber.org/zap"
)

// Client is the wired PipX client: session core, API wrappers and the
// realtime listener.
type Client struct {
	Auth          *authUsecase.AuthService
	Signals       *signalUsecase.SignalService
	Providers     *providerUsecase.ProviderService
	Notifications *notifyUsecase.NotificationService
	Subscriptions *subscriptionUsecase.SubscriptionService
	Listener      *websocket.Listener

	Gateway   *gateway.Gateway
	Bus       *authbus.Bus
	Scheduler *expiry.Scheduler
	Store     *session.Store
	DeviceID  string

	logger *zap.Logger
}

// Options override pieces of the wiring, mostly for tests.
type Options struct {
	HTTPClient gateway.Doer
	Backend    session.Backend
}

func NewClient(ctx context.Context, cfg config.AppConfig, logger *zap.Logger, opts Options) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// ----- Session Store -----
	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = OpenBackend(ctx, cfg.Session)
		if err != nil {
			return nil, err
		}
	}
	store := session.NewStore(backend, logger.Named("session"))

	// ----- Token lifecycle -----
	inspector := jwt.NewInspector()
	bus := authbus.New(logger.Named("authbus"))
	scheduler := expiry.NewScheduler(store, inspector, cfg.ExpiryMargin, nil, logger.Named("expiry"))
	deviceID := store.EnsureDeviceID(ctx)

	// ----- Gateway -----
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	gw, err := gateway.New(gateway.Config{
		BaseURL:   cfg.APIBaseURL,
		Policy:    cfg.Gateway,
		DeviceID:  deviceID,
		UserAgent: cfg.UserAgent,
	}, httpClient, store, inspector, bus, logger.Named("gateway"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	// ----- Services (Usecases) -----
	c := &Client{
		Auth:          authUsecase.NewAuthService(gw, store, inspector, scheduler, bus, deviceID, logger.Named("auth")),
		Signals:       signalUsecase.NewSignalService(gw),
		Providers:     providerUsecase.NewProviderService(gw),
		Notifications: notifyUsecase.NewNotificationService(gw),
		Subscriptions: subscriptionUsecase.NewSubscriptionService(gw),
		Listener: websocket.NewListener(websocket.ListenerConfig{
			URL:            cfg.WSURL,
			ReconnectDelay: cfg.WSReconnectDelay,
			DeviceID:       deviceID,
		}, store, inspector, bus, logger.Named("realtime")),
		Gateway:   gw,
		Bus:       bus,
		Scheduler: scheduler,
		Store:     store,
		DeviceID:  deviceID,
		logger:    logger,
	}
	return c, nil
}

// Close disarms the session and releases the store. The persisted session
// stays for the next run.
func (c *Client) Close() error {
	c.Auth.Stop()
	return c.Store.Close()
}

// OpenBackend opens the session backend selected by cfg.Backend.
func OpenBackend(ctx context.Context, cfg config.SessionConfig) (session.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return session.NewMemoryBackend(), nil

	case config.BackendSQLite, "":
		sqlDB, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		b, err := session.NewSQLiteBackend(ctx, sqlDB, cfg.Profile)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		return b, nil

	case config.BackendRedis:
		client, err := db.NewRedisClient(db.RedisConfig{
			Addresses: cfg.RedisAddrs,
			Password:  cfg.RedisPass,
			DB:        cfg.RedisDB,
			PoolSize:  cfg.RedisPoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return session.NewRedisBackend(client, cfg.Profile), nil

	case config.BackendPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		b, err := session.NewPostgresBackend(ctx, pool, cfg.Profile)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}

// NewLogger builds the process logger: development output outside
// production, and debug level when LOG_LEVEL asks for it.
func NewLogger(cfg config.AppConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err == nil {
		zcfg.Level = level
	}
	return zcfg.Build()
}
