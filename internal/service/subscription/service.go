// internal/service/subscription/service.go
package subscription

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"pipx-client/internal/domain/subscription"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/gateway"
)

// SubscriptionService wraps plan listing and paid subscriptions
type SubscriptionService struct {
	api gateway.Requester
}

func NewSubscriptionService(api gateway.Requester) *SubscriptionService {
	return &SubscriptionService{api: api}
}

// Plans lists the plans of a provider, or every plan when providerID is empty.
func (s *SubscriptionService) Plans(ctx context.Context, providerID string) ([]subscription.Plan, error) {
	req := &gateway.Request{Method: http.MethodGet, Path: "/subscriptions/plans"}
	if providerID != "" {
		req.Query = url.Values{"provider_id": {providerID}}
	}
	resp, err := s.api.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var plans []subscription.Plan
	if err := gateway.DecodeData(resp, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *SubscriptionService) Subscribe(ctx context.Context, planID string) (*subscription.Subscription, error) {
	if planID == "" {
		return nil, fmt.Errorf("plan id is required: %w", xerrors.ErrInvalidInput)
	}
	resp, err := s.api.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   "/subscriptions",
		JSON:   subscription.SubscribeRequest{PlanID: planID},
	})
	if err != nil {
		return nil, err
	}
	var sub subscription.Subscription
	if err := gateway.DecodeData(resp, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Mine lists the caller's subscriptions.
func (s *SubscriptionService) Mine(ctx context.Context) ([]subscription.Subscription, error) {
	resp, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/subscriptions/me"})
	if err != nil {
		return nil, err
	}
	var subs []subscription.Subscription
	if err := gateway.DecodeData(resp, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *SubscriptionService) Cancel(ctx context.Context, id string) error {
	_, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodDelete, Path: "/subscriptions/" + url.PathEscape(id)})
	return err
}
