// Package expiry logs the client out shortly before its token runs out.
package expiry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/pkg/session"

	"go.uber.org/zap"
)

// DefaultSafetyMargin is how long before the real exp the scheduler fires.
const DefaultSafetyMargin = 60 * time.Second

// Timer is the part of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so tests can drive the scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is backed by the time package.
var RealClock Clock = realClock{}

type Scheduler struct {
	store     *session.Store
	inspector *jwt.Inspector
	margin    time.Duration
	clock     Clock
	logger    *zap.Logger

	mu      sync.Mutex
	current *armed
}

type armed struct {
	token string
	timer Timer
	done  atomic.Bool
}

// claim marks the timer as consumed. Only the first of fire, cancel or Stop
// wins; onFire may therefore call cancel without blocking.
func (a *armed) claim() bool {
	return a.done.CompareAndSwap(false, true)
}

func NewScheduler(store *session.Store, inspector *jwt.Inspector, margin time.Duration, clock Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if margin < 0 {
		margin = 0
	}
	return &Scheduler{
		store:     store,
		inspector: inspector,
		margin:    margin,
		clock:     clock,
		logger:    logger,
	}
}

// Arm schedules onFire for margin before the token's exp. A token that is
// undecodable or already expired fires synchronously and gets a no-op
// cancel. Arming replaces any timer armed earlier.
func (s *Scheduler) Arm(token string, onFire func()) (cancel func()) {
	s.Stop()

	exp, ok := s.inspector.ExpiresAt(token)
	now := s.clock.Now()
	if !ok || !now.Before(exp) {
		s.logger.Info("token already expired, logging out now", zap.Bool("decodable", ok))
		s.clearAndFire(onFire)
		return func() {}
	}

	delay := exp.Sub(now) - s.margin
	if delay < 0 {
		delay = 0
	}

	a := &armed{token: token}
	s.mu.Lock()
	s.current = a
	a.timer = s.clock.AfterFunc(delay, func() {
		if !a.claim() {
			return
		}
		s.release(a)
		s.logger.Info("session expiry reached, logging out", zap.Time("exp", exp))
		s.clearAndFire(onFire)
	})
	s.mu.Unlock()

	s.logger.Debug("expiry timer armed",
		zap.Time("exp", exp),
		zap.Duration("fires_in", delay),
	)

	return func() {
		if a.claim() {
			a.timer.Stop()
			s.release(a)
		}
	}
}

// Stop cancels the armed timer, if any.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	a := s.current
	s.current = nil
	s.mu.Unlock()

	if a != nil && a.claim() {
		a.timer.Stop()
	}
}

// Armed reports whether a timer is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

func (s *Scheduler) release(a *armed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == a {
		s.current = nil
	}
}

func (s *Scheduler) clearAndFire(onFire func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if res := s.store.ClearSession(ctx); !res.OK() {
		s.logger.Warn("session clear incomplete", zap.Strings("failed", res.Failed))
	}
	if onFire != nil {
		onFire()
	}
}
