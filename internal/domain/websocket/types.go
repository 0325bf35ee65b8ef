// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing      EventType = "ping"
	EventTypePong      EventType = "pong"
	EventTypeConnected EventType = "connected"
	EventTypeError     EventType = "error"

	// Notification events (server -> client)
	EventTypeNotification      EventType = "notification"
	EventTypeNotificationCount EventType = "notification:count"

	// Session events
	EventTypeSessionExpired EventType = "session:expired"
	EventTypeSessionRevoked EventType = "session:revoked"
	EventTypeForceLogout    EventType = "session:force_logout"

	// System events
	EventTypeSystemAlert EventType = "system:alert"
)

// IsSessionEnd reports whether the event invalidates the local session.
func (t EventType) IsSessionEnd() bool {
	switch t {
	case EventTypeSessionExpired, EventTypeSessionRevoked, EventTypeForceLogout:
		return true
	}
	return false
}

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      json.RawMessage        `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NotificationCountData for notification:count events
type NotificationCountData struct {
	Unread int `json:"unread"`
}

// SessionEventData for session events
type SessionEventData struct {
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

// SystemAlertData for system-wide alerts
type SystemAlertData struct {
	Severity  string `json:"severity"` // info, warning, critical
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"action_url,omitempty"`
}

// NewMessage builds a message with data encoded as JSON.
func NewMessage(eventType EventType, data interface{}) (*WSMessage, error) {
	msg := &WSMessage{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ID:        ulid.Make().String(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		msg.Data = raw
	}
	return msg, nil
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeData unmarshals the payload into out.
func (m *WSMessage) DecodeData(out interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, out)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse ws message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("ws message has no type")
	}
	return &msg, nil
}
