package session

import (
	"context"
	"errors"
	"testing"

	xerrors "pipx-client/internal/pkg/errors"
)

// fakeBackend wraps a MemoryBackend and lets tests inject failures per key.
type fakeBackend struct {
	*MemoryBackend
	getFn    func(key string) error
	setFn    func(key string) error
	deleteFn func(key string) error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{MemoryBackend: NewMemoryBackend()}
}

func (f *fakeBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if f.getFn != nil {
		if err := f.getFn(key); err != nil {
			return "", false, err
		}
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *fakeBackend) Set(ctx context.Context, key, value string) error {
	if f.setFn != nil {
		if err := f.setFn(key); err != nil {
			return err
		}
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	if f.deleteFn != nil {
		if err := f.deleteFn(key); err != nil {
			return err
		}
	}
	return f.MemoryBackend.Delete(ctx, key)
}

var errDisk = errors.New("disk unavailable")

func value(p Pair) string {
	if p.Value == nil {
		return "<nil>"
	}
	return *p.Value
}

func TestStore_SetThenGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(), nil)

	res := s.SetMany(ctx, []Entry{
		{Key: KeyAuthToken, Value: "abc"},
		{Key: KeyUserType, Value: UserTypeSignalProvider},
	})
	if !res.OK() {
		t.Fatalf("SetMany result = %+v", res)
	}

	pairs, res := s.GetMany(ctx, []string{KeyAuthToken, KeyUserType})
	if !res.OK() {
		t.Fatalf("GetMany result = %+v", res)
	}
	if len(pairs) != 2 ||
		pairs[0].Key != KeyAuthToken || value(pairs[0]) != "abc" ||
		pairs[1].Key != KeyUserType || value(pairs[1]) != UserTypeSignalProvider {
		t.Errorf("GetMany = %v", pairs)
	}
}

func TestStore_GetMany_MissingKeysAreNil(t *testing.T) {
	s := NewStore(NewMemoryBackend(), nil)

	pairs, res := s.GetMany(context.Background(), []string{KeyRefreshToken})
	if !res.OK() {
		t.Fatalf("unexpected result %+v", res)
	}
	if pairs[0].Value != nil {
		t.Errorf("expected nil value, got %q", *pairs[0].Value)
	}
}

func TestStore_GetMany_TotalFailureKeepsShape(t *testing.T) {
	fb := newFakeBackend()
	fb.getFn = func(string) error { return errDisk }
	s := NewStore(fb, nil)

	keys := []string{KeyAuthToken, KeyUserType, KeyRefreshToken}
	pairs, res := s.GetMany(context.Background(), keys)

	if len(pairs) != len(keys) {
		t.Fatalf("got %d pairs, want %d", len(pairs), len(keys))
	}
	for i, p := range pairs {
		if p.Key != keys[i] || p.Value != nil {
			t.Errorf("pair %d = %v, want [%s <nil>]", i, p, keys[i])
		}
	}
	if !errors.Is(res.Err, xerrors.ErrStorage) {
		t.Errorf("res.Err = %v, want ErrStorage", res.Err)
	}
}

func TestStore_SetMany_PartialFailureIsReported(t *testing.T) {
	fb := newFakeBackend()
	fb.setFn = func(key string) error {
		if key == KeyUserType {
			return errDisk
		}
		return nil
	}
	s := NewStore(fb, nil)

	res := s.SetMany(context.Background(), []Entry{
		{Key: KeyAuthToken, Value: "abc"},
		{Key: KeyUserType, Value: UserTypeUser},
	})
	if !res.Degraded() {
		t.Fatalf("expected degraded result, got %+v", res)
	}
	if len(res.Failed) != 1 || res.Failed[0] != KeyUserType {
		t.Errorf("Failed = %v", res.Failed)
	}
	if v, ok := s.Get(context.Background(), KeyAuthToken); !ok || v != "abc" {
		t.Errorf("authToken = %q, %v", v, ok)
	}
}

func TestStore_ClearMany_HalfClearedBackendReadsAsCleared(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend()
	s := NewStore(fb, nil)

	s.SaveRecord(ctx, Record{AuthToken: "abc", UserType: UserTypeSignalProvider, RefreshToken: "r1"})

	fb.deleteFn = func(key string) error {
		if key == KeyAuthToken || key == KeyRefreshToken {
			return errDisk
		}
		return nil
	}

	res := s.ClearMany(ctx, SessionKeys)
	if res.OK() {
		t.Fatal("expected failures to be reported")
	}

	pairs, _ := s.GetMany(ctx, SessionKeys)
	for _, p := range pairs {
		if p.Value != nil {
			t.Errorf("%s still readable after clear: %q", p.Key, *p.Value)
		}
	}

	// The backend still holds the token; a new write must win again.
	s.SetMany(ctx, []Entry{{Key: KeyAuthToken, Value: "new"}})
	if v, ok := s.Get(ctx, KeyAuthToken); !ok || v != "new" {
		t.Errorf("authToken after rewrite = %q, %v", v, ok)
	}
}

func TestStore_LoadRecord_DefaultsUserType(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(), nil)
	s.SetMany(ctx, []Entry{{Key: KeyAuthToken, Value: "abc"}})

	rec, _ := s.LoadRecord(ctx)
	if !rec.HasToken() || rec.UserType != UserTypeUser {
		t.Errorf("LoadRecord = %+v", rec)
	}
}

func TestStore_SaveRecord_DropsStaleRefreshToken(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(), nil)

	s.SaveRecord(ctx, Record{AuthToken: "a", RefreshToken: "old"})
	s.SaveRecord(ctx, Record{AuthToken: "b"})

	rec, _ := s.LoadRecord(ctx)
	if rec.AuthToken != "b" || rec.RefreshToken != "" {
		t.Errorf("LoadRecord = %+v", rec)
	}
}

func TestStore_EnsureDeviceID_IsStable(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(), nil)

	first := s.EnsureDeviceID(ctx)
	if first == "" {
		t.Fatal("empty device id")
	}
	if second := s.EnsureDeviceID(ctx); second != first {
		t.Errorf("device id changed: %q -> %q", first, second)
	}

	s.ClearSession(ctx)
	if again := s.EnsureDeviceID(ctx); again != first {
		t.Errorf("device id must survive logout: %q -> %q", first, again)
	}
}
