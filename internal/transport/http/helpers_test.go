package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatline-server/internal/auth"
	"github.com/vovakirdan/chatline-server/internal/config"
	"github.com/vovakirdan/chatline-server/internal/core"
	"github.com/vovakirdan/chatline-server/internal/proto"
	"github.com/vovakirdan/chatline-server/internal/store/sqlite"
)

type testEnv struct {
	t        *testing.T
	ts       *httptest.Server
	cfg      config.Config
	store    *sqlite.SQLiteStore
	auth     *auth.Service
	registry *core.Registry
	router   *core.Router
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.AllowedOrigins = nil
	cfg.JWT.Secret = "http-test-secret-0123456789abcdef"
	cfg.JWT.Issuer = "test"
	cfg.JWT.Audience = "test"
	cfg.Session.AuthTimeout = 2 * time.Second
	cfg.Session.RateLimit = 0
	return cfg
}

// newTestEnv wires the full HTTP stack over an in-memory SQLite store.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		TTL:        cfg.JWT.TTL,
		ConnectTTL: cfg.JWT.ConnectTTL,
	})

	var verifier core.IdentityVerifier = authService
	if cfg.Session.TrustClientIdentity {
		verifier = auth.NewTrustedVerifier(st)
	}

	registry := core.NewRegistry(core.NewBroadcaster(&disabledLogger), &disabledLogger)
	router := core.NewRouter(st, st, registry, core.NewMemoryUnseen(), &disabledLogger)
	gateway := core.NewGateway(registry, verifier, core.SessionConfig{
		AuthTimeout:  cfg.Session.AuthTimeout,
		PingInterval: cfg.Session.PingInterval,
		PingTimeout:  cfg.Session.PingTimeout,
		SendBuffer:   cfg.Session.SendBuffer,
	}, &disabledLogger)

	server := NewServer(Services{
		Auth:     authService,
		Users:    st,
		Router:   router,
		Registry: registry,
		Gateway:  gateway,
	}, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		registry.CloseAll(core.CloseShutdown)
		ts.Close()
	})

	return &testEnv{t: t, ts: ts, cfg: cfg, store: st, auth: authService, registry: registry, router: router}
}

type testUser struct {
	ID    string
	Token string
}

func (e *testEnv) signup(name string) testUser {
	e.t.Helper()

	user, token, err := e.auth.Signup(context.Background(), auth.SignupInput{
		FullName: name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "password123",
		Bio:      "hello",
	})
	if err != nil {
		e.t.Fatalf("signup %s: %v", name, err)
	}
	return testUser{ID: user.ID, Token: token}
}

func (e *testEnv) connectToken(u testUser) string {
	e.t.Helper()

	token, _, err := e.auth.IssueConnectToken(u.ID)
	if err != nil {
		e.t.Fatalf("connect token: %v", err)
	}
	return token
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(method, path, token string, body any) (int, []byte) {
	e.t.Helper()

	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				e.t.Fatalf("marshal body: %v", err)
			}
			rd = bytes.NewReader(raw)
		}
	}

	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) dial(ctx context.Context, query string) *websocket.Conn {
	e.t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(query), nil)
	if err != nil {
		e.t.Fatalf("dial: %v", err)
	}
	e.t.Cleanup(func() { conn.CloseNow() })
	return conn
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readEvent reads frames until one with the given event name arrives.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if out.Type == proto.OutboundTypeEvent && out.Event == event {
			return out.Data
		}
	}
}

// waitOnline reads presence snapshots until one equals want (order ignored).
func waitOnline(t *testing.T, ctx context.Context, conn *websocket.Conn, want ...string) {
	t.Helper()

	slices.Sort(want)
	for {
		got := decode[[]string](t, readEvent(t, ctx, conn, proto.EventOnlineUsers))
		slices.Sort(got)
		if slices.Equal(got, want) {
			return
		}
	}
}

// readCloseStatus reads until the server closes the connection.
func readCloseStatus(t *testing.T, ctx context.Context, conn *websocket.Conn) websocket.StatusCode {
	t.Helper()

	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return websocket.CloseStatus(err)
		}
	}
}
