// internal/repository/memory/subscription_repo.go
package memory

import (
	"context"
	"time"

	"pipx-client/internal/domain/subscription"
	xerrors "pipx-client/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
)

type SubscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) CreatePlan(ctx context.Context, p *subscription.Plan) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	if _, exists := r.db.plans[p.ID]; !exists {
		r.db.planOrder = append(r.db.planOrder, p.ID)
	}
	r.db.plans[p.ID] = *p
}

func (r *SubscriptionRepository) Plans(ctx context.Context, providerID string) []subscription.Plan {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []subscription.Plan{}
	for _, id := range r.db.planOrder {
		p := r.db.plans[id]
		if providerID != "" && p.ProviderID != providerID {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Subscribe starts a subscription to planID. An active subscription to the
// same plan is returned unchanged.
func (r *SubscriptionRepository) Subscribe(ctx context.Context, userID, planID string) (*subscription.Subscription, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	plan, ok := r.db.plans[planID]
	if !ok {
		return nil, false, xerrors.ErrNotFound
	}

	now := r.db.now().UTC()
	for _, s := range r.db.subs[userID] {
		if s.PlanID == planID && s.IsActive(now) {
			out := *s
			return &out, false, nil
		}
	}

	period := 30 * 24 * time.Hour
	if plan.BillingCycle == subscription.BillingYearly {
		period = 365 * 24 * time.Hour
	}
	s := &subscription.Subscription{
		ID:        ulid.Make().String(),
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Status:    subscription.StatusActive,
		StartedAt: now,
		ExpiresAt: now.Add(period),
	}
	r.db.subs[userID] = append(r.db.subs[userID], s)

	out := *s
	return &out, true, nil
}

func (r *SubscriptionRepository) Mine(ctx context.Context, userID string) []subscription.Subscription {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now().UTC()
	out := []subscription.Subscription{}
	for _, s := range r.db.subs[userID] {
		if s.Status == subscription.StatusActive && !now.Before(s.ExpiresAt) {
			s.Status = subscription.StatusExpired
		}
		out = append(out, *s)
	}
	return out
}

func (r *SubscriptionRepository) Cancel(ctx context.Context, userID, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, s := range r.db.subs[userID] {
		if s.ID != id {
			continue
		}
		if s.Status != subscription.StatusActive {
			return xerrors.ErrInvalidInput
		}
		now := r.db.now().UTC()
		s.Status = subscription.StatusCancelled
		s.CancelledAt = &now
		return nil
	}
	return xerrors.ErrNotFound
}
