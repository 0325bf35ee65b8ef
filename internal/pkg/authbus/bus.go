// Package authbus broadcasts session invalidation to every interested part of
// the client.
//
// A publish opens an expiry episode. While the episode is active further
// publishes are dropped, so N requests discovering the same expired token
// produce one notification per subscriber. The session owner closes the
// episode with ResetEpisode once its logout has completed.
package authbus

import (
	"sync"

	"go.uber.org/zap"
)

// Event is the only signal carried by the bus.
type Event string

const EventExpired Event = "session:expired"

// Handler reacts to an auth event.
type Handler func(Event)

type Bus struct {
	mu       sync.Mutex
	handlers map[uint64]Handler
	order    []uint64
	nextID   uint64

	episodeActive bool

	logger *zap.Logger
}

func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[uint64]Handler),
		logger:   logger,
	}
}

// Subscribe registers h and returns a func removing that registration.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// PublishExpired delivers EventExpired to every subscriber unless an episode
// is already in progress. It reports whether this call opened the episode.
func (b *Bus) PublishExpired() bool {
	b.mu.Lock()
	if b.episodeActive {
		b.mu.Unlock()
		b.logger.Debug("auth expiry already being handled, publish suppressed")
		return false
	}
	b.episodeActive = true

	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.Unlock()

	b.logger.Info("session expired, notifying subscribers", zap.Int("subscribers", len(handlers)))

	for _, h := range handlers {
		b.deliver(h, EventExpired)
	}
	return true
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("auth event handler panicked",
				zap.Any("panic", r),
				zap.String("event", string(ev)),
			)
		}
	}()
	h(ev)
}

// ResetEpisode closes the current expiry episode.
func (b *Bus) ResetEpisode() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.episodeActive = false
}

func (b *Bus) EpisodeActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.episodeActive
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}
