// Package gateway is the single path every PipX API call takes. It attaches
// the stored bearer token, refuses to send one that has expired, bounds each
// attempt with a timeout, classifies failures and retries the transient ones.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pipx-client/internal/pkg/jwt"
	"pipx-client/internal/pkg/session"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderDeviceID       = "X-Device-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	previewLimit = 256
	maxBodySize  = 10 << 20
)

// Policy holds the fixed retry and timeout settings.
type Policy struct {
	// RetryAttempts is the number of resends after the first attempt.
	RetryAttempts int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// Timeout bounds each attempt.
	Timeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		Timeout:       30 * time.Second,
	}
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Requester is what API wrappers depend on. *Gateway satisfies it.
type Requester interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// ExpiryPublisher is told when a call finds the stored token expired.
type ExpiryPublisher interface {
	PublishExpired() bool
}

type Config struct {
	BaseURL   string
	Policy    Policy
	DeviceID  string
	UserAgent string
}

type Gateway struct {
	baseURL    *url.URL
	policy     Policy
	deviceID   string
	userAgent  string
	httpClient Doer
	store      *session.Store
	inspector  *jwt.Inspector
	bus        ExpiryPublisher
	logger     *zap.Logger
}

// New builds a Gateway. A nil httpClient uses http.DefaultClient.
func New(cfg Config, httpClient Doer, store *session.Store, inspector *jwt.Inspector, bus ExpiryPublisher, logger *zap.Logger) (*Gateway, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy.RetryAttempts < 0 {
		cfg.Policy.RetryAttempts = 0
	}
	if cfg.Policy.Timeout <= 0 {
		cfg.Policy.Timeout = DefaultPolicy().Timeout
	}

	return &Gateway{
		baseURL:    base,
		policy:     cfg.Policy,
		deviceID:   cfg.DeviceID,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		store:      store,
		inspector:  inspector,
		bus:        bus,
		logger:     logger,
	}, nil
}

func (g *Gateway) Policy() Policy { return g.policy }

// BaseURL returns the API root the gateway sends to.
func (g *Gateway) BaseURL() *url.URL {
	u := *g.baseURL
	return &u
}

// Do performs req. On success it returns the decoded envelope; on failure
// the error is always a *Error.
func (g *Gateway) Do(ctx context.Context, req *Request) (*Response, error) {
	b, err := req.encodeBody()
	if err != nil {
		return nil, &Error{Kind: KindRequest, Message: "could not build request", Err: err}
	}

	var token string
	if !req.Public {
		if t, ok := g.store.Get(ctx, session.KeyAuthToken); ok && t != "" {
			if g.inspector.IsExpired(t) {
				g.logger.Info("stored token expired, request not sent",
					zap.String("method", req.Method),
					zap.String("path", req.Path),
				)
				if g.bus != nil {
					g.bus.PublishExpired()
				}
				return nil, authExpiredError()
			}
			token = t
		}
	}

	requestID := ulid.Make().String()
	var idempotencyKey string
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		idempotencyKey = ulid.Make().String()
	}

	attempts := g.policy.RetryAttempts + 1
	for attempt := 1; ; attempt++ {
		resp, gwErr := g.send(ctx, req, b, token, requestID, idempotencyKey)
		if gwErr == nil {
			return resp, nil
		}
		gwErr.Attempts = attempt

		if !gwErr.Retryable() || attempt >= attempts || ctx.Err() != nil {
			g.logger.Warn("request failed",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.String("request_id", requestID),
				zap.String("kind", string(gwErr.Kind)),
				zap.Int("status", gwErr.StatusCode),
				zap.Int("attempts", attempt),
			)
			return nil, gwErr
		}

		g.logger.Warn("transient failure, retrying",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.String("kind", string(gwErr.Kind)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", g.policy.RetryDelay),
			zap.Error(gwErr.Err),
		)

		if err := wait(ctx, g.policy.RetryDelay); err != nil {
			gwErr = timeoutError(err)
			gwErr.Attempts = attempt
			return nil, gwErr
		}
	}
}

func (g *Gateway) send(ctx context.Context, req *Request, b *body, token, requestID, idempotencyKey string) (*Response, *Error) {
	actx, cancel := context.WithTimeout(ctx, g.policy.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(actx, req.Method, g.url(req), b.reader())
	if err != nil {
		return nil, &Error{Kind: KindRequest, Message: "could not build request", Err: err}
	}

	httpReq.Header.Set("Accept", "application/json")
	if b != nil {
		httpReq.Header.Set("Content-Type", b.contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set(HeaderRequestID, requestID)
	if idempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	}
	if g.deviceID != "" {
		httpReq.Header.Set(HeaderDeviceID, g.deviceID)
	}
	if g.userAgent != "" {
		httpReq.Header.Set("User-Agent", g.userAgent)
	}

	start := time.Now()
	res, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(actx, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, transportError(actx, err)
	}

	g.logger.Debug("response received",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	return classify(res, data)
}

func (g *Gateway) url(req *Request) string {
	u := g.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String()
}

// classify turns a received response into a Response or a terminal *Error.
func classify(res *http.Response, data []byte) (*Response, *Error) {
	status := res.StatusCode
	contentType := res.Header.Get("Content-Type")
	trimmed := bytes.TrimSpace(data)

	if status < 200 || status > 299 {
		e := &Error{
			Kind:       KindHTTP,
			StatusCode: status,
			Message:    http.StatusText(status),
		}
		if len(trimmed) > 0 {
			var payload map[string]any
			if err := json.Unmarshal(trimmed, &payload); err == nil {
				e.Payload = payload
				if msg, ok := payload["message"].(string); ok && msg != "" {
					e.Message = msg
				}
			} else {
				e.Preview = preview(trimmed)
				e.ContentType = contentType
			}
		}
		return nil, e
	}

	if status == http.StatusNoContent || status == http.StatusResetContent || len(trimmed) == 0 {
		return &Response{StatusCode: status}, nil
	}

	if !json.Valid(trimmed) {
		return nil, &Error{
			Kind:        KindMalformed,
			StatusCode:  status,
			Message:     "server returned an unreadable response",
			Preview:     preview(trimmed),
			ContentType: contentType,
		}
	}

	var resp Response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		// Valid JSON that is not an envelope, e.g. a bare array.
		return &Response{StatusCode: status, Data: json.RawMessage(trimmed)}, nil
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = status
	}
	return &resp, nil
}

func transportError(attemptCtx context.Context, err error) *Error {
	var urlErr *url.Error
	if attemptCtx.Err() != nil || (errors.As(err, &urlErr) && urlErr.Timeout()) {
		return timeoutError(err)
	}
	return &Error{
		Kind:           KindNetwork,
		Message:        "Network error. Please check your connection.",
		IsNetworkError: true,
		Err:            err,
	}
}

func timeoutError(err error) *Error {
	return &Error{
		Kind:           KindTimeout,
		Message:        "The request timed out. Please try again.",
		IsTimeoutError: true,
		Err:            err,
	}
}

func preview(data []byte) string {
	if len(data) > previewLimit {
		return strings.ToValidUTF8(string(data[:previewLimit]), "") + "…"
	}
	return string(data)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
