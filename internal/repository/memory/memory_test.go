package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pipx-client/internal/domain/signal"
	xerrors "pipx-client/internal/pkg/errors"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		total, page, limit int
		wantStart, wantEnd int
		wantNext           bool
	}{
		{total: 5, page: 1, limit: 2, wantStart: 0, wantEnd: 2, wantNext: true},
		{total: 5, page: 3, limit: 2, wantStart: 4, wantEnd: 5, wantNext: false},
		{total: 5, page: 9, limit: 2, wantStart: 5, wantEnd: 5, wantNext: false},
		{total: 25, page: 0, limit: 0, wantStart: 0, wantEnd: 20, wantNext: true},
		{total: 0, page: 1, limit: 10, wantStart: 0, wantEnd: 0, wantNext: false},
	}
	for _, tt := range tests {
		start, end, next := paginate(tt.total, tt.page, tt.limit)
		if start != tt.wantStart || end != tt.wantEnd || next != tt.wantNext {
			t.Errorf("paginate(%d, %d, %d) = %d, %d, %v; want %d, %d, %v",
				tt.total, tt.page, tt.limit, start, end, next, tt.wantStart, tt.wantEnd, tt.wantNext)
		}
	}
}

func TestAuthRepository_OTPIsSingleUseAndExpires(t *testing.T) {
	db := NewDB()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }
	repo := NewAuthRepository(db)
	ctx := context.Background()

	repo.SaveOTP(ctx, "Trader@PipX.dev", "123456", time.Minute)
	if err := repo.ConsumeOTP(ctx, "trader@pipx.dev", "000000"); !errors.Is(err, xerrors.ErrOTPInvalid) {
		t.Fatalf("wrong code: err = %v", err)
	}
	if err := repo.ConsumeOTP(ctx, "trader@pipx.dev", "123456"); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if err := repo.ConsumeOTP(ctx, "trader@pipx.dev", "123456"); !errors.Is(err, xerrors.ErrOTPInvalid) {
		t.Fatalf("second use: err = %v", err)
	}

	repo.SaveOTP(ctx, "trader@pipx.dev", "654321", time.Minute)
	now = now.Add(time.Minute)
	if err := repo.ConsumeOTP(ctx, "trader@pipx.dev", "654321"); !errors.Is(err, xerrors.ErrOTPInvalid) {
		t.Fatalf("expired code: err = %v", err)
	}
}

func TestAuthRepository_RevocationLifecycle(t *testing.T) {
	db := NewDB()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }
	repo := NewAuthRepository(db)
	ctx := context.Background()

	repo.AddSession(ctx, "u1", "laptop", now.Add(time.Hour))
	repo.AddSession(ctx, "u1", "phone", now.Add(2*time.Hour))

	repo.RevokeSession(ctx, "u1", "laptop")
	if !repo.IsRevoked(ctx, "laptop") || repo.IsRevoked(ctx, "phone") {
		t.Fatal("only laptop should be revoked")
	}
	if n := repo.RevokeAll(ctx, "u1"); n != 1 {
		t.Fatalf("RevokeAll = %d, want 1", n)
	}
	if !repo.IsRevoked(ctx, "phone") {
		t.Fatal("phone should be revoked")
	}

	now = now.Add(90 * time.Minute)
	if n := repo.PurgeExpired(ctx); n != 1 {
		t.Fatalf("PurgeExpired = %d, want 1", n)
	}
	if repo.IsRevoked(ctx, "laptop") || !repo.IsRevoked(ctx, "phone") {
		t.Fatal("purge should only forget the expired laptop token")
	}
}

func TestSignalRepository_LikesAreIdempotent(t *testing.T) {
	repo := NewSignalRepository(NewDB())
	ctx := context.Background()

	s := &signal.Signal{ProviderID: "p1", Pair: "EURUSD"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		user  string
		liked bool
		want  int
	}{
		{"u1", true, 1},
		{"u1", true, 1},
		{"u2", true, 2},
		{"u1", false, 1},
		{"u1", false, 1},
	}
	for i, st := range steps {
		got, err := repo.SetLike(ctx, s.ID, st.user, st.liked)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != st.want {
			t.Errorf("step %d: count = %d, want %d", i, got, st.want)
		}
	}

	view, err := repo.FindByID(ctx, s.ID, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if !view.LikedByMe || view.Likes != 1 {
		t.Errorf("view = liked %v, %d likes; want liked, 1", view.LikedByMe, view.Likes)
	}

	if _, err := repo.SetLike(ctx, "missing", "u1", true); !errors.Is(err, xerrors.ErrNotFound) {
		t.Errorf("missing signal: err = %v", err)
	}
}

func TestSignalRepository_ListPagesAndFilters(t *testing.T) {
	repo := NewSignalRepository(NewDB())
	ctx := context.Background()

	for _, pair := range []string{"EURUSD", "GBPUSD", "EURUSD", "XAUUSD", "EURUSD"} {
		if err := repo.Create(ctx, &signal.Signal{ProviderID: "p1", Pair: pair}); err != nil {
			t.Fatal(err)
		}
	}

	page1, next := repo.List(ctx, "", "", "", 1, 3)
	if len(page1) != 3 || !next {
		t.Fatalf("page 1: %d items, next %v", len(page1), next)
	}
	page2, next := repo.List(ctx, "", "", "", 2, 3)
	if len(page2) != 2 || next {
		t.Fatalf("page 2: %d items, next %v", len(page2), next)
	}

	eur, _ := repo.List(ctx, "", "eurusd", "", 1, 10)
	if len(eur) != 3 {
		t.Errorf("pair filter: %d items, want 3", len(eur))
	}
	if other, _ := repo.List(ctx, "p2", "", "", 1, 10); len(other) != 0 {
		t.Errorf("provider filter: %d items, want 0", len(other))
	}
}
