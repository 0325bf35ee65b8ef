// internal/domain/subscription/dto.go
package subscription

import "time"

type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Plan is a paid tier offered by a signal provider
type Plan struct {
	ID           string       `json:"id"`
	ProviderID   string       `json:"provider_id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Price        float64      `json:"price"`
	Currency     string       `json:"currency"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	Features     []string     `json:"features,omitempty"`
}

type Subscription struct {
	ID          string     `json:"id"`
	PlanID      string     `json:"plan_id"`
	PlanName    string     `json:"plan_name"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type SubscribeRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

func (s Subscription) IsActive(now time.Time) bool {
	return s.Status == StatusActive && now.Before(s.ExpiresAt)
}
