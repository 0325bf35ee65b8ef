// internal/service/signal/service.go
package signal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pipx-client/internal/domain/signal"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/gateway"
)

const defaultPageSize = 20

// SignalService wraps the feed, signal and comment endpoints.
type SignalService struct {
	api gateway.Requester
}

func NewSignalService(api gateway.Requester) *SignalService {
	return &SignalService{api: api}
}

// Feed returns one page of the signal feed.
func (s *SignalService) Feed(ctx context.Context, f signal.ListFilters) (*signal.Page[signal.Signal], error) {
	return s.list(ctx, "/signals", f)
}

// ByProvider returns one page of a provider's signals.
func (s *SignalService) ByProvider(ctx context.Context, providerID string, f signal.ListFilters) (*signal.Page[signal.Signal], error) {
	if providerID == "" {
		return nil, fmt.Errorf("provider id is required: %w", xerrors.ErrInvalidInput)
	}
	return s.list(ctx, "/providers/"+url.PathEscape(providerID)+"/signals", f)
}

func (s *SignalService) list(ctx context.Context, path string, f signal.ListFilters) (*signal.Page[signal.Signal], error) {
	page, q := pageQuery(f.Page, f.Limit)
	if f.Pair != "" {
		q.Set("pair", strings.ToUpper(f.Pair))
	}

	resp, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: path, Query: q})
	if err != nil {
		return nil, err
	}

	out := &signal.Page[signal.Signal]{Page: page, HasNextPage: resp.NextPage()}
	if err := gateway.DecodeData(resp, &out.Items); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SignalService) Get(ctx context.Context, id string) (*signal.Signal, error) {
	resp, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/signals/" + url.PathEscape(id)})
	if err != nil {
		return nil, err
	}
	var sig signal.Signal
	if err := gateway.DecodeData(resp, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

// Create posts a new signal as multipart form data, with the chart image
// attached when present. Only signal providers may post.
func (s *SignalService) Create(ctx context.Context, req *signal.CreateSignalRequest) (*signal.Signal, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	form := gateway.NewForm().
		Set("pair", strings.ToUpper(req.Pair)).
		Set("direction", string(req.Direction)).
		Set("entry_price", formatPrice(req.EntryPrice)).
		Set("stop_loss", formatPrice(req.StopLoss)).
		Set("take_profit", formatPrice(req.TakeProfit))
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	if len(req.Chart) > 0 {
		name := req.ChartName
		if name == "" {
			name = "chart.png"
		}
		form.AddFile("chart", name, req.Chart)
	}

	resp, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodPost, Path: "/signals", Form: form})
	if err != nil {
		return nil, err
	}
	var sig signal.Signal
	if err := gateway.DecodeData(resp, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

func (s *SignalService) Delete(ctx context.Context, id string) error {
	_, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodDelete, Path: "/signals/" + url.PathEscape(id)})
	return err
}

// ========== Likes ==========

func (s *SignalService) Like(ctx context.Context, id string) error {
	_, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodPost, Path: "/signals/" + url.PathEscape(id) + "/like"})
	return err
}

func (s *SignalService) Unlike(ctx context.Context, id string) error {
	_, err := s.api.Do(ctx, &gateway.Request{Method: http.MethodDelete, Path: "/signals/" + url.PathEscape(id) + "/like"})
	return err
}

// ========== Comments ==========

func (s *SignalService) Comments(ctx context.Context, id string, page, limit int) (*signal.Page[signal.Comment], error) {
	p, q := pageQuery(page, limit)
	resp, err := s.api.Do(ctx, &gateway.Request{
		Method: http.MethodGet,
		Path:   "/signals/" + url.PathEscape(id) + "/comments",
		Query:  q,
	})
	if err != nil {
		return nil, err
	}

	out := &signal.Page[signal.Comment]{Page: p, HasNextPage: resp.NextPage()}
	if err := gateway.DecodeData(resp, &out.Items); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SignalService) Comment(ctx context.Context, id, text string) (*signal.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("comment text is required: %w", xerrors.ErrInvalidInput)
	}
	resp, err := s.api.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   "/signals/" + url.PathEscape(id) + "/comments",
		JSON:   signal.CreateCommentRequest{Text: text},
	})
	if err != nil {
		return nil, err
	}
	var c signal.Comment
	if err := gateway.DecodeData(resp, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Helper functions ---

func pageQuery(page, limit int) (int, url.Values) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return page, q
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func validateCreate(req *signal.CreateSignalRequest) error {
	if req.Pair == "" {
		return fmt.Errorf("pair is required: %w", xerrors.ErrInvalidInput)
	}
	if req.Direction != signal.DirectionBuy && req.Direction != signal.DirectionSell {
		return fmt.Errorf("direction must be BUY or SELL: %w", xerrors.ErrInvalidInput)
	}
	if req.EntryPrice <= 0 {
		return fmt.Errorf("entry price must be positive: %w", xerrors.ErrInvalidInput)
	}
	switch req.Direction {
	case signal.DirectionBuy:
		if (req.StopLoss > 0 && req.StopLoss >= req.EntryPrice) || (req.TakeProfit > 0 && req.TakeProfit <= req.EntryPrice) {
			return fmt.Errorf("buy signal needs stop loss below and take profit above entry: %w", xerrors.ErrInvalidInput)
		}
	case signal.DirectionSell:
		if (req.StopLoss > 0 && req.StopLoss <= req.EntryPrice) || (req.TakeProfit > 0 && req.TakeProfit >= req.EntryPrice) {
			return fmt.Errorf("sell signal needs stop loss above and take profit below entry: %w", xerrors.ErrInvalidInput)
		}
	}
	return nil
}
