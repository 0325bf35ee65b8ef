package session

import (
	"context"

	"github.com/google/uuid"
)

// EnsureDeviceID returns the persisted device id, creating one on first use.
// If the id cannot be persisted a fresh one is still returned for this run.
func (s *Store) EnsureDeviceID(ctx context.Context) string {
	if id, ok := s.Get(ctx, KeyDeviceID); ok && id != "" {
		return id
	}

	id := uuid.NewString()
	s.SetMany(ctx, []Entry{{Key: KeyDeviceID, Value: id}})
	return id
}
