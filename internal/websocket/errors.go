// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	errSessionEnded = errors.New("server ended the session")
)
