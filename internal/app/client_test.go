package app

import (
	"context"
	"path/filepath"
	"testing"

	"pipx-client/internal/config"
	"pipx-client/internal/pkg/session"

	"github.com/alicebob/miniredis/v2"
)

func TestOpenBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.SessionConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.SessionConfig{Backend: config.BackendMemory}},
		{name: "sqlite", cfg: config.SessionConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "s", "session.db"), Profile: "p1"}},
		{name: "redis", cfg: config.SessionConfig{Backend: config.BackendRedis, RedisAddrs: []string{mr.Addr()}, Profile: "p1"}},
		{name: "unknown", cfg: config.SessionConfig{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b, err := OpenBackend(ctx, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenBackend: %v", err)
			}
			defer b.Close()

			if err := b.Set(ctx, session.KeyAuthToken, "tok"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			v, ok, err := b.Get(ctx, session.KeyAuthToken)
			if err != nil || !ok || v != "tok" {
				t.Errorf("Get = %q, %v, %v", v, ok, err)
			}
		})
	}
}

func TestNewClient_PersistsDeviceID(t *testing.T) {
	ctx := context.Background()
	backend := session.NewMemoryBackend()
	cfg := config.AppConfig{APIBaseURL: "http://pipx.test/api/v1", WSURL: "ws://pipx.test/ws"}

	first, err := NewClient(ctx, cfg, nil, Options{Backend: backend})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if first.DeviceID == "" {
		t.Fatal("empty device id")
	}

	second, err := NewClient(ctx, cfg, nil, Options{Backend: backend})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if second.DeviceID != first.DeviceID {
		t.Errorf("device id changed across runs: %q vs %q", first.DeviceID, second.DeviceID)
	}
	if second.Auth.IsLoggedIn() {
		t.Error("fresh client reports logged in")
	}
}

func TestNewClient_RejectsRelativeAPIURL(t *testing.T) {
	_, err := NewClient(context.Background(), config.AppConfig{APIBaseURL: "/api"}, nil, Options{Backend: session.NewMemoryBackend()})
	if err == nil {
		t.Error("expected error")
	}
}

func TestNewLogger(t *testing.T) {
	for _, cfg := range []config.AppConfig{
		{Env: "development", LogLevel: "debug"},
		{Env: "production", LogLevel: "warn"},
		{Env: "production", LogLevel: "bogus"},
	} {
		l, err := NewLogger(cfg)
		if err != nil || l == nil {
			t.Errorf("NewLogger(%+v) = %v", cfg, err)
		}
	}
}
