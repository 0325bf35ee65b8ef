package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"pipx-client/internal/domain/signal"
	xerrors "pipx-client/internal/pkg/errors"
	"pipx-client/internal/pkg/gateway"
)

type fakeAPI struct {
	doFn func(ctx context.Context, req *gateway.Request) (*gateway.Response, error)
	last *gateway.Request
}

func (f *fakeAPI) Do(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	f.last = req
	return f.doFn(ctx, req)
}

func ok(data any, next bool) func(context.Context, *gateway.Request) (*gateway.Response, error) {
	return func(context.Context, *gateway.Request) (*gateway.Response, error) {
		raw, _ := json.Marshal(data)
		return &gateway.Response{StatusCode: 200, Data: raw, HasNextPage: &next}, nil
	}
}

func TestFeed_Pagination(t *testing.T) {
	api := &fakeAPI{doFn: ok([]signal.Signal{{ID: "s1", Pair: "EURUSD"}, {ID: "s2"}}, true)}
	svc := NewSignalService(api)

	page, err := svc.Feed(context.Background(), signal.ListFilters{Page: 0, Pair: "eurusd"})
	if err != nil {
		t.Fatal(err)
	}

	if api.last.Method != http.MethodGet || api.last.Path != "/signals" {
		t.Errorf("request = %s %s", api.last.Method, api.last.Path)
	}
	q := api.last.Query
	if q.Get("page") != "1" || q.Get("limit") != "20" || q.Get("pair") != "EURUSD" {
		t.Errorf("query = %v", q)
	}
	if len(page.Items) != 2 || !page.HasNextPage || page.Page != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestCreate_SendsMultipart(t *testing.T) {
	api := &fakeAPI{doFn: ok(signal.Signal{ID: "new"}, false)}
	svc := NewSignalService(api)

	sig, err := svc.Create(context.Background(), &signal.CreateSignalRequest{
		Pair:       "xauusd",
		Direction:  signal.DirectionBuy,
		EntryPrice: 2300.5,
		StopLoss:   2290,
		TakeProfit: 2330,
		Chart:      []byte("img"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if sig.ID != "new" {
		t.Errorf("id = %q", sig.ID)
	}

	req := api.last
	if req.Form == nil || req.JSON != nil {
		t.Fatal("create must send a form body only")
	}
	if req.Form.Fields["pair"] != "XAUUSD" || req.Form.Fields["entry_price"] != "2300.5" {
		t.Errorf("fields = %v", req.Form.Fields)
	}
	if len(req.Form.Files) != 1 || req.Form.Files[0].Filename != "chart.png" {
		t.Errorf("files = %+v", req.Form.Files)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  signal.CreateSignalRequest
	}{
		{"no pair", signal.CreateSignalRequest{Direction: signal.DirectionBuy, EntryPrice: 1}},
		{"bad direction", signal.CreateSignalRequest{Pair: "EURUSD", Direction: "HOLD", EntryPrice: 1}},
		{"no entry", signal.CreateSignalRequest{Pair: "EURUSD", Direction: signal.DirectionSell}},
		{"buy stop above entry", signal.CreateSignalRequest{Pair: "EURUSD", Direction: signal.DirectionBuy, EntryPrice: 1.1, StopLoss: 1.2}},
		{"sell target above entry", signal.CreateSignalRequest{Pair: "EURUSD", Direction: signal.DirectionSell, EntryPrice: 1.1, TakeProfit: 1.2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{doFn: ok(nil, false)}
			_, err := NewSignalService(api).Create(context.Background(), &tt.req)
			if !errors.Is(err, xerrors.ErrInvalidInput) {
				t.Errorf("err = %v, want invalid input", err)
			}
			if api.last != nil {
				t.Error("invalid signal reached the API")
			}
		})
	}
}

func TestComment_JSONBody(t *testing.T) {
	api := &fakeAPI{doFn: ok(signal.Comment{ID: "c1", Text: "nice"}, false)}
	svc := NewSignalService(api)

	c, err := svc.Comment(context.Background(), "s/1", "  nice  ")
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != "c1" {
		t.Errorf("comment = %+v", c)
	}
	if api.last.Path != "/signals/s%2F1/comments" {
		t.Errorf("path = %q", api.last.Path)
	}
	body, ok := api.last.JSON.(signal.CreateCommentRequest)
	if !ok || body.Text != "nice" {
		t.Errorf("body = %#v", api.last.JSON)
	}

	if _, err := svc.Comment(context.Background(), "s1", "   "); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("blank comment err = %v", err)
	}
}

func TestLike_PropagatesGatewayError(t *testing.T) {
	want := &gateway.Error{Kind: gateway.KindHTTP, StatusCode: 404, Message: "Signal not found"}
	api := &fakeAPI{doFn: func(context.Context, *gateway.Request) (*gateway.Response, error) { return nil, want }}

	err := NewSignalService(api).Like(context.Background(), "missing")
	if gateway.StatusCode(err) != 404 {
		t.Errorf("err = %v", err)
	}
	if api.last.Method != http.MethodPost || api.last.Path != "/signals/missing/like" {
		t.Errorf("request = %s %s", api.last.Method, api.last.Path)
	}
}
