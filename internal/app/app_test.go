package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "chatline.db")
	cfg.JWT.Secret = "app-test-secret-0123456789abcdef"
	return cfg
}

func TestNewServesStatus(t *testing.T) {
	cfg := testConfig(t)
	logger := zerolog.Nop()

	a, err := New(context.Background(), &cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.cleanup)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestNewWithRedisUnseen(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Unseen.Backend = config.UnseenRedis
	cfg.Unseen.RedisURL = "redis://" + mr.Addr()
	logger := zerolog.Nop()

	a, err := New(context.Background(), &cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.cleanup)
	if a.unseen == nil {
		t.Fatal("expected redis unseen counter")
	}
}

func TestNewRejectsPlaceholderSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWT.Secret = config.PlaceholderJWTSecret
	logger := zerolog.Nop()

	if _, err := New(context.Background(), &cfg, &logger); err == nil {
		t.Fatal("app started with the placeholder jwt secret")
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "mongo"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Addr = "127.0.0.1:0"
	logger := zerolog.Nop()

	a, err := New(context.Background(), &cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
