// internal/repository/memory/signal_repo.go
package memory

import (
	"context"
	"path"
	"strings"

	"pipx-client/internal/domain/signal"
	xerrors "pipx-client/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
)

type SignalRepository struct {
	db *DB
}

func NewSignalRepository(db *DB) *SignalRepository {
	return &SignalRepository{db: db}
}

func (r *SignalRepository) Create(ctx context.Context, s *signal.Signal) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s.ID = ulid.Make().String()
	s.Status = signal.StatusOpen
	s.CreatedAt = r.db.now().UTC()
	r.db.signals[s.ID] = s
	r.db.signalOrder = append(r.db.signalOrder, s.ID)
	return nil
}

// FindByID returns a copy of the signal as seen by viewerID.
func (r *SignalRepository) FindByID(ctx context.Context, id, viewerID string) (*signal.Signal, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.signals[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	out := r.view(s, viewerID)
	return &out, nil
}

// List returns signals newest first, optionally filtered by provider and pair.
func (r *SignalRepository) List(ctx context.Context, providerID, pair, viewerID string, page, limit int) ([]signal.Signal, bool) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var matched []*signal.Signal
	for i := len(r.db.signalOrder) - 1; i >= 0; i-- {
		s := r.db.signals[r.db.signalOrder[i]]
		if s == nil {
			continue
		}
		if providerID != "" && s.ProviderID != providerID {
			continue
		}
		if pair != "" && !strings.EqualFold(s.Pair, pair) {
			continue
		}
		matched = append(matched, s)
	}

	start, end, hasNext := paginate(len(matched), page, limit)
	out := make([]signal.Signal, 0, end-start)
	for _, s := range matched[start:end] {
		out = append(out, r.view(s, viewerID))
	}
	return out, hasNext
}

// Delete removes a signal owned by providerID.
func (r *SignalRepository) Delete(ctx context.Context, id, providerID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.signals[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if s.ProviderID != providerID {
		return xerrors.ErrForbidden
	}
	delete(r.db.signals, id)
	delete(r.db.likes, id)
	delete(r.db.comments, id)
	for i, v := range r.db.signalOrder {
		if v == id {
			r.db.signalOrder = append(r.db.signalOrder[:i], r.db.signalOrder[i+1:]...)
			break
		}
	}
	return nil
}

// SetLike likes or unlikes a signal. It is idempotent and returns the new count.
func (r *SignalRepository) SetLike(ctx context.Context, id, userID string, liked bool) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.signals[id]; !ok {
		return 0, xerrors.ErrNotFound
	}
	if r.db.likes[id] == nil {
		r.db.likes[id] = make(map[string]bool)
	}
	if liked {
		r.db.likes[id][userID] = true
	} else {
		delete(r.db.likes[id], userID)
	}
	return len(r.db.likes[id]), nil
}

func (r *SignalRepository) AddComment(ctx context.Context, c *signal.Comment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.signals[c.SignalID]; !ok {
		return xerrors.ErrNotFound
	}
	c.ID = ulid.Make().String()
	c.CreatedAt = r.db.now().UTC()
	r.db.comments[c.SignalID] = append(r.db.comments[c.SignalID], *c)
	return nil
}

func (r *SignalRepository) Comments(ctx context.Context, signalID string, page, limit int) ([]signal.Comment, bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if _, ok := r.db.signals[signalID]; !ok {
		return nil, false, xerrors.ErrNotFound
	}
	all := r.db.comments[signalID]
	start, end, hasNext := paginate(len(all), page, limit)
	out := make([]signal.Comment, end-start)
	copy(out, all[start:end])
	return out, hasNext, nil
}

// view must be called with the lock held.
func (r *SignalRepository) view(s *signal.Signal, viewerID string) signal.Signal {
	out := *s
	out.Likes = len(r.db.likes[s.ID])
	out.Comments = len(r.db.comments[s.ID])
	out.LikedByMe = r.db.likes[s.ID][viewerID]
	return out
}

// Chart is an uploaded chart screenshot.
type Chart struct {
	ContentType string
	Data        []byte
}

// SaveChart stores an upload under a generated name and returns the name.
func (r *SignalRepository) SaveChart(ctx context.Context, filename string, ch Chart) string {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	name := ulid.Make().String()
	if ext := path.Ext(filename); ext != "" {
		name += strings.ToLower(ext)
	}
	r.db.charts[name] = ch
	return name
}

func (r *SignalRepository) Chart(ctx context.Context, name string) (Chart, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	ch, ok := r.db.charts[name]
	if !ok {
		return Chart{}, xerrors.ErrNotFound
	}
	return ch, nil
}
