// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "pipx-client/internal/domain/websocket"

	"go.uber.org/zap"
)

// Hub tracks the realtime connections of the mock API by user.
type Hub struct {
	clients map[string]map[*Peer]bool
	mu      sync.RWMutex

	// Registration/unregistration
	register   chan *Peer
	unregister chan *Peer

	broadcast chan *BroadcastMessage
	done      chan struct{}

	logger *zap.Logger
}

type BroadcastMessage struct {
	UserIDs []string
	Message *wstypes.WSMessage

	// Disconnect closes the targeted peers once the message is flushed.
	Disconnect bool
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Peer]bool),
		register:   make(chan *Peer),
		unregister: make(chan *Peer),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case peer := <-h.register:
			h.registerPeer(peer)

		case peer := <-h.unregister:
			h.unregisterPeer(peer)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

// Add hands peer to the running hub. It reports false once the hub stopped.
func (h *Hub) Add(peer *Peer) bool {
	select {
	case h.register <- peer:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) registerPeer(peer *Peer) {
	h.mu.Lock()
	if h.clients[peer.userID] == nil {
		h.clients[peer.userID] = make(map[*Peer]bool)
	}
	h.clients[peer.userID][peer] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("websocket peer connected",
		zap.String("user_id", peer.userID),
		zap.String("session_id", peer.sessionID),
		zap.Int("total", total),
	)

	if msg, err := wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"user_id":    peer.userID,
		"user_type":  peer.userType,
		"session_id": peer.sessionID,
		"device":     peer.device,
	}); err == nil {
		peer.SendMessage(msg)
	}
}

func (h *Hub) unregisterPeer(peer *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if peers, ok := h.clients[peer.userID]; ok {
		if _, exists := peers[peer]; exists {
			delete(peers, peer)
			peer.Close()

			if len(peers) == 0 {
				delete(h.clients, peer.userID)
			}

			h.logger.Info("websocket peer disconnected",
				zap.String("user_id", peer.userID),
				zap.String("session_id", peer.sessionID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

// BroadcastMessage delivers msg to the listed users, or to everyone when
// UserIDs is nil.
func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(peers map[*Peer]bool) {
		for peer := range peers {
			peer.SendMessage(msg.Message)
			if msg.Disconnect {
				peer.Close()
			}
		}
	}

	if msg.UserIDs == nil {
		for _, peers := range h.clients {
			deliver(peers)
		}
		return
	}
	for _, id := range msg.UserIDs {
		deliver(h.clients[id])
	}
}

// SendToUser queues msg for every connection of userID.
func (h *Hub) SendToUser(userID string, msg *wstypes.WSMessage) {
	h.enqueue(&BroadcastMessage{UserIDs: []string{userID}, Message: msg})
}

// ForceLogout tells every connection of userID that its session is over and
// closes them.
func (h *Hub) ForceLogout(userID, reason string) {
	msg, err := wstypes.NewMessage(wstypes.EventTypeForceLogout, wstypes.SessionEventData{
		Reason:  reason,
		Message: "You have been logged out.",
	})
	if err != nil {
		h.logger.Error("failed to build force logout", zap.Error(err))
		return
	}
	h.enqueue(&BroadcastMessage{UserIDs: []string{userID}, Message: msg, Disconnect: true})
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

func (h *Hub) GetConnectedClients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	n := 0
	for _, peers := range h.clients {
		n += len(peers)
	}
	return n
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, peers := range h.clients {
		for peer := range peers {
			peer.Close()
		}
	}
	h.clients = make(map[string]map[*Peer]bool)
}
