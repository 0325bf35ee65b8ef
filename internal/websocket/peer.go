// internal/websocket/peer.go
package websocket

import (
	"context"
	"sync"
	"time"

	wstypes "pipx-client/internal/domain/websocket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB
)

// PeerAuth holds what the handshake learned about the connecting user
type PeerAuth struct {
	UserID    string
	UserType  string
	SessionID string
	Device    string
}

// Peer is one server side connection in the mock API.
type Peer struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	userType  string
	sessionID string
	device    string

	closeOnce sync.Once

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPeer(hub *Hub, conn *websocket.Conn, auth *PeerAuth) *Peer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Peer{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		userID:    auth.UserID,
		userType:  auth.UserType,
		sessionID: auth.SessionID,
		device:    auth.Device,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *Peer) UserID() string    { return p.userID }
func (p *Peer) SessionID() string { return p.sessionID }

// ReadPump handles incoming messages from the peer
func (p *Peer) ReadPump() {
	defer func() {
		select {
		case p.hub.unregister <- p:
		case <-p.hub.done:
		}
		p.conn.Close()
	}()

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.hub.logger.Debug("websocket read error", zap.String("user_id", p.userID), zap.Error(err))
			}
			return
		}
		p.handleMessage(message)
	}
}

// WritePump handles outgoing messages to the peer
func (p *Peer) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.ctx.Done():
			// Drain what was queued before the close, e.g. a force logout.
			for {
				select {
				case message := <-p.send:
					p.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
						return
					}
				default:
					p.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					return
				}
			}

		case message := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *Peer) handleMessage(data []byte) {
	msg, err := wstypes.ParseMessage(data)
	if err != nil {
		p.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	switch msg.Type {
	case wstypes.EventTypePing:
		if pong, err := wstypes.NewMessage(wstypes.EventTypePong, nil); err == nil {
			p.SendMessage(pong)
		}
	default:
		p.SendError("unsupported_event", "Event not supported", string(msg.Type))
	}
}

// SendMessage queues a message. A peer whose queue is full is dropped.
func (p *Peer) SendMessage(msg *wstypes.WSMessage) {
	data, err := msg.ToJSON()
	if err != nil {
		p.hub.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case p.send <- data:
	case <-p.ctx.Done():
	default:
		p.hub.logger.Warn("peer send queue full, closing", zap.String("user_id", p.userID))
		p.Close()
	}
}

// SendError sends an error message to the peer
func (p *Peer) SendError(code, message, details string) {
	msg, err := wstypes.NewMessage(wstypes.EventTypeError, wstypes.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	})
	if err == nil {
		p.SendMessage(msg)
	}
}

// Close stops the write pump after it has flushed queued messages.
func (p *Peer) Close() {
	p.closeOnce.Do(p.cancel)
}
