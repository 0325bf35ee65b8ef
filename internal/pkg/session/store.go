// internal/pkg/session/store.go
package session

import (
	"context"
	"fmt"
	"sync"

	xerrors "pipx-client/internal/pkg/errors"

	"go.uber.org/zap"
)

// Backend is a string-only key-value store.
type Backend interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// BulkDeleter is implemented by backends that can drop several keys in one
// round trip.
type BulkDeleter interface {
	DeleteMany(ctx context.Context, keys []string) error
}

// Store is the session cache of the client. It never returns storage
// failures as errors; callers get a Result and a same-shaped answer.
//
// Keys whose delete failed are remembered and read back as absent until
// they are written again, so a half-cleared backend cannot resurrect a
// logged-out session.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu      sync.Mutex
	cleared map[string]bool
}

func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		cleared: make(map[string]bool),
	}
}

// SetMany writes every entry. Individual failures are collected, not returned.
func (s *Store) SetMany(ctx context.Context, entries []Entry) Result {
	var res Result
	for _, e := range entries {
		if err := s.backend.Set(ctx, e.Key, e.Value); err != nil {
			s.logger.Warn("session store write failed", zap.String("key", e.Key), zap.Error(err))
			res.Failed = append(res.Failed, e.Key)
			continue
		}
		s.mu.Lock()
		delete(s.cleared, e.Key)
		s.mu.Unlock()
	}
	if len(entries) > 0 && len(res.Failed) == len(entries) {
		res.Err = fmt.Errorf("%w: all %d writes failed", xerrors.ErrStorage, len(entries))
	}
	return res
}

// GetMany returns one pair per key, in order. Unreadable keys come back nil.
func (s *Store) GetMany(ctx context.Context, keys []string) ([]Pair, Result) {
	pairs := make([]Pair, len(keys))
	var res Result

	for i, key := range keys {
		pairs[i] = Pair{Key: key}

		if s.isCleared(key) {
			continue
		}

		v, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			s.logger.Warn("session store read failed", zap.String("key", key), zap.Error(err))
			res.Failed = append(res.Failed, key)
			continue
		}
		if ok {
			v := v
			pairs[i].Value = &v
		}
	}

	if len(keys) > 0 && len(res.Failed) == len(keys) {
		res.Err = fmt.Errorf("%w: all %d reads failed", xerrors.ErrStorage, len(keys))
	}
	return pairs, res
}

// ClearMany deletes keys. Keys are treated as cleared even when the backend
// refuses the delete.
func (s *Store) ClearMany(ctx context.Context, keys []string) Result {
	var res Result

	s.mu.Lock()
	for _, k := range keys {
		s.cleared[k] = true
	}
	s.mu.Unlock()

	if bulk, ok := s.backend.(BulkDeleter); ok {
		if err := bulk.DeleteMany(ctx, keys); err != nil {
			s.logger.Warn("session store bulk delete failed", zap.Strings("keys", keys), zap.Error(err))
			res.Failed = append(res.Failed, keys...)
			res.Err = fmt.Errorf("%w: %v", xerrors.ErrStorage, err)
			return res
		}
		s.forget(keys...)
		return res
	}

	for _, k := range keys {
		if err := s.backend.Delete(ctx, k); err != nil {
			s.logger.Warn("session store delete failed", zap.String("key", k), zap.Error(err))
			res.Failed = append(res.Failed, k)
			continue
		}
		s.forget(k)
	}
	if len(keys) > 0 && len(res.Failed) == len(keys) {
		res.Err = fmt.Errorf("%w: all %d deletes failed", xerrors.ErrStorage, len(keys))
	}
	return res
}

// forget drops the tombstone of keys the backend has really deleted.
func (s *Store) forget(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.cleared, k)
	}
}

func (s *Store) isCleared(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared[key]
}

// Get is a single-key GetMany.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	pairs, _ := s.GetMany(ctx, []string{key})
	if pairs[0].Value == nil {
		return "", false
	}
	return *pairs[0].Value, true
}

// LoadRecord reads the session keys as a Record.
func (s *Store) LoadRecord(ctx context.Context) (Record, Result) {
	pairs, res := s.GetMany(ctx, SessionKeys)

	var rec Record
	for _, p := range pairs {
		if p.Value == nil {
			continue
		}
		switch p.Key {
		case KeyAuthToken:
			rec.AuthToken = *p.Value
		case KeyUserType:
			rec.UserType = *p.Value
		case KeyRefreshToken:
			rec.RefreshToken = *p.Value
		}
	}
	rec.UserType = NormalizeUserType(rec.UserType)
	return rec, res
}

// SaveRecord writes the record as one set. An empty refresh token removes
// any refresh token left by a previous session.
func (s *Store) SaveRecord(ctx context.Context, rec Record) Result {
	entries := []Entry{
		{Key: KeyAuthToken, Value: rec.AuthToken},
		{Key: KeyUserType, Value: NormalizeUserType(rec.UserType)},
	}
	if rec.RefreshToken == "" {
		s.ClearMany(ctx, []string{KeyRefreshToken})
	} else {
		entries = append(entries, Entry{Key: KeyRefreshToken, Value: rec.RefreshToken})
	}
	return s.SetMany(ctx, entries)
}

// ClearSession removes all session keys.
func (s *Store) ClearSession(ctx context.Context) Result {
	return s.ClearMany(ctx, SessionKeys)
}

func (s *Store) Close() error {
	return s.backend.Close()
}
