// internal/repository/memory/db.go
package memory

import (
	"sync"
	"time"

	"pipx-client/internal/domain/notification"
	"pipx-client/internal/domain/signal"
	"pipx-client/internal/domain/subscription"
)

// DB is the in-process dataset behind the mock API. Every repository shares
// one DB and its lock.
type DB struct {
	mu  sync.RWMutex
	now func() time.Time

	users    map[string]*UserRecord
	byEmail  map[string]string
	otps     map[string]otpEntry
	sessions map[string]map[string]time.Time // user id -> jti -> exp
	revoked  map[string]time.Time            // jti -> exp

	signals     map[string]*signal.Signal
	signalOrder []string
	likes       map[string]map[string]bool // signal id -> user id
	comments    map[string][]signal.Comment
	follows     map[string]map[string]bool // provider id -> user id
	charts      map[string]Chart

	notifications map[string][]*notification.Notification

	plans     map[string]subscription.Plan
	planOrder []string
	subs      map[string][]*subscription.Subscription
}

func NewDB() *DB {
	return &DB{
		now:           time.Now,
		users:         make(map[string]*UserRecord),
		byEmail:       make(map[string]string),
		otps:          make(map[string]otpEntry),
		sessions:      make(map[string]map[string]time.Time),
		revoked:       make(map[string]time.Time),
		signals:       make(map[string]*signal.Signal),
		likes:         make(map[string]map[string]bool),
		comments:      make(map[string][]signal.Comment),
		follows:       make(map[string]map[string]bool),
		charts:        make(map[string]Chart),
		notifications: make(map[string][]*notification.Notification),
		plans:         make(map[string]subscription.Plan),
		subs:          make(map[string][]*subscription.Subscription),
	}
}

// paginate returns the bounds of page (1-based) and whether more items follow.
func paginate(total, page, limit int) (start, end int, hasNext bool) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start = (page - 1) * limit
	if start > total {
		start = total
	}
	end = start + limit
	if end > total {
		end = total
	}
	return start, end, end < total
}
