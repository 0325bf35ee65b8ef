// internal/service/provider/service.go
package provider

import (
	"context"
	"net/http"
	"net/url"

	"pipx-client/internal/domain/provider"
	"pipx-client/internal/pkg/gateway"
)

type ProviderService struct {
	api gateway.Requester
}

func NewProviderService(api gateway.Requester) *ProviderService {
	return &ProviderService{api: api}
}

func (s *ProviderService) Profile(ctx context.Context, id string) (*provider.Profile, error) {
	resp, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/providers/" + url.PathEscape(id)})
	if err != nil {
		return nil, err
	}
	var p provider.Profile
	if err := gateway.DecodeData(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProviderService) Follow(ctx context.Context, id string) (*provider.FollowResult, error) {
	return s.follow(ctx, http.MethodPost, id)
}

func (s *ProviderService) Unfollow(ctx context.Context, id string) (*provider.FollowResult, error) {
	return s.follow(ctx, http.MethodDelete, id)
}

func (s *ProviderService) follow(ctx context.Context, method, id string) (*provider.FollowResult, error) {
	resp, err := s.api.Do(ctx, &gateway.Request{Method: method, Path: "/providers/" + url.PathEscape(id) + "/follow"})
	if err != nil {
		return nil, err
	}
	res := provider.FollowResult{ProviderID: id, Following: method == http.MethodPost}
	if err := gateway.DecodeData(resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
