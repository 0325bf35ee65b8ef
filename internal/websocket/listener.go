// internal/websocket/listener.go
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pipx-client/internal/domain/notification"
	wstypes "pipx-client/internal/domain/websocket"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/pkg/session"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ExpiryPublisher is satisfied by *authbus.Bus.
type ExpiryPublisher interface {
	PublishExpired() bool
}

type ListenerConfig struct {
	URL            string
	ReconnectDelay time.Duration
	DeviceID       string
}

// Listener keeps a realtime connection open for the logged in user and
// turns server session events into local expiry.
type Listener struct {
	url            string
	reconnectDelay time.Duration
	deviceID       string
	dialer         *websocket.Dialer
	store          *session.Store
	inspector      *jwt.Inspector
	bus            ExpiryPublisher
	logger         *zap.Logger

	mu             sync.RWMutex
	onNotification func(notification.Notification)
	onUnread       func(int)
}

func NewListener(cfg ListenerConfig, store *session.Store, inspector *jwt.Inspector, bus ExpiryPublisher, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Listener{
		url:            cfg.URL,
		reconnectDelay: cfg.ReconnectDelay,
		deviceID:       cfg.DeviceID,
		dialer:         &websocket.Dialer{HandshakeTimeout: writeWait},
		store:          store,
		inspector:      inspector,
		bus:            bus,
		logger:         logger,
	}
}

func (l *Listener) OnNotification(fn func(notification.Notification)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onNotification = fn
}

func (l *Listener) OnUnreadCount(fn func(int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onUnread = fn
}

// Run connects and reconnects until ctx ends or the session does. It returns
// xerrors.ErrNotLoggedIn without a token and xerrors.ErrSessionExpired when
// the token ran out or the server ended the session.
func (l *Listener) Run(ctx context.Context) error {
	for {
		token, ok := l.store.Get(ctx, session.KeyAuthToken)
		if !ok || token == "" {
			return xerrors.ErrNotLoggedIn
		}
		if l.inspector.IsExpired(token) {
			l.bus.PublishExpired()
			return xerrors.ErrSessionExpired
		}

		err := l.connect(ctx, token)
		switch {
		case errors.Is(err, errSessionEnded):
			l.bus.PublishExpired()
			return xerrors.ErrSessionExpired
		case ctx.Err() != nil:
			return ctx.Err()
		}

		l.logger.Warn("realtime connection lost, reconnecting",
			zap.Error(err),
			zap.Duration("delay", l.reconnectDelay),
		)

		t := time.NewTimer(l.reconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (l *Listener) connect(ctx context.Context, token string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	if l.deviceID != "" {
		header.Set("X-Device-ID", l.deviceID)
	}

	conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: handshake rejected", errSessionEnded)
		}
		return fmt.Errorf("dial %s: %w", l.url, err)
	}
	defer conn.Close()

	l.logger.Info("realtime connection established")

	done := make(chan struct{})
	defer close(done)
	go l.keepAlive(ctx, conn, done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		msg, err := wstypes.ParseMessage(data)
		if err != nil {
			l.logger.Debug("ignoring unreadable realtime message", zap.Error(err))
			continue
		}
		if err := l.dispatch(conn, msg); err != nil {
			return err
		}
	}
}

func (l *Listener) dispatch(conn *websocket.Conn, msg *wstypes.WSMessage) error {
	switch {
	case msg.Type.IsSessionEnd():
		var data wstypes.SessionEventData
		msg.DecodeData(&data)
		l.logger.Info("server ended the session",
			zap.String("event", string(msg.Type)),
			zap.String("reason", data.Reason),
		)
		return errSessionEnded

	case msg.Type == wstypes.EventTypeNotification:
		var n notification.Notification
		if err := msg.DecodeData(&n); err != nil {
			l.logger.Warn("bad notification payload", zap.Error(err))
			return nil
		}
		l.mu.RLock()
		fn := l.onNotification
		l.mu.RUnlock()
		if fn != nil {
			fn(n)
		}

	case msg.Type == wstypes.EventTypeNotificationCount:
		var c wstypes.NotificationCountData
		if err := msg.DecodeData(&c); err != nil {
			return nil
		}
		l.mu.RLock()
		fn := l.onUnread
		l.mu.RUnlock()
		if fn != nil {
			fn(c.Unread)
		}

	case msg.Type == wstypes.EventTypePing:
		pong, err := wstypes.NewMessage(wstypes.EventTypePong, nil)
		if err != nil {
			return nil
		}
		data, _ := pong.ToJSON()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)

	default:
		l.logger.Debug("realtime event", zap.String("type", string(msg.Type)))
	}
	return nil
}

// keepAlive pings the server and closes conn when ctx ends.
func (l *Listener) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
