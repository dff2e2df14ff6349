package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/chatline-server/internal/store"
	"github.com/vovakirdan/chatline-server/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeHandle records pushes and closes.
type fakeHandle struct {
	id      string
	events  chan *Event
	pushErr error
	onClose func()

	mu      sync.Mutex
	closed  bool
	reasons []CloseReason
}

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{id: id, events: make(chan *Event, 16)}
}

func (h *fakeHandle) UserID() string { return h.id }

func (h *fakeHandle) Push(ev *Event) error {
	if h.pushErr != nil {
		return h.pushErr
	}
	select {
	case h.events <- ev:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (h *fakeHandle) Close(reason CloseReason) {
	if h.onClose != nil {
		h.onClose()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.reasons = append(h.reasons, reason)
}

func (h *fakeHandle) closedWith() (bool, []CloseReason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed, append([]CloseReason(nil), h.reasons...)
}

// fakeTransport counts pings and records the close reason.
type fakeTransport struct {
	pingErr error

	mu     sync.Mutex
	pings  int
	closed bool
	reason CloseReason
}

func (t *fakeTransport) Ping(ctx context.Context) error {
	t.mu.Lock()
	t.pings++
	err := t.pingErr
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (t *fakeTransport) Close(reason CloseReason) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.reason = reason
	return nil
}

func (t *fakeTransport) setPingErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pingErr = err
}

func (t *fakeTransport) closeReason() (bool, CloseReason) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed, t.reason
}

// idVerifier accepts any credential that names a known user id.
type idVerifier map[string]bool

var errUnknownCredential = errors.New("unknown credential")

func (v idVerifier) VerifyConnect(_ context.Context, credential string) (string, error) {
	if !v[credential] {
		return "", errUnknownCredential
	}
	return credential, nil
}

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	s, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s store.UserStore, id string) {
	t.Helper()

	err := s.CreateUser(context.Background(), &store.User{
		ID:           id,
		Email:        id + "@example.com",
		FullName:     id,
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}
