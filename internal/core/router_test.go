package core

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/chatline-server/internal/store"
)

var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

type routerFixture struct {
	store    store.Store
	registry *Registry
	unseen   *MemoryUnseen
	router   *Router
}

func newRouterFixture(t *testing.T, users ...string) *routerFixture {
	t.Helper()

	s := newTestStore(t)
	for _, u := range users {
		seedUser(t, s, u)
	}
	reg := NewRegistry(nil, nil)
	unseen := NewMemoryUnseen()

	r := NewRouter(s, s, reg, unseen, nil)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var tick int
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return &routerFixture{store: s, registry: reg, unseen: unseen, router: r}
}

func (f *routerFixture) unseenFor(t *testing.T, recipient, sender string) int64 {
	t.Helper()
	summary, err := f.router.FetchUnseenSummary(context.Background(), recipient)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	return summary[sender]
}

func TestSendDeliversToLiveRecipient(t *testing.T) {
	f := newRouterFixture(t, "alice", "bob")
	bob := newFakeHandle("bob")
	f.registry.Register("bob", bob)

	msg, err := f.router.Send(context.Background(), "alice", "bob", Payload{Text: "  hello  "})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Text != "hello" || msg.Seen || msg.SenderID != "alice" || msg.RecipientID != "bob" {
		t.Fatalf("unexpected message %+v", msg)
	}

	ev := mustEvent(t, bob.events, EventNewMessage)
	if ev.Message.ID != msg.ID {
		t.Fatalf("pushed message %s, sent %s", ev.Message.ID, msg.ID)
	}
	if n := f.unseenFor(t, "bob", "alice"); n != 0 {
		t.Fatalf("live delivery must not count as unseen, got %d", n)
	}

	stored, err := f.store.GetMessage(context.Background(), msg.ID)
	if err != nil || stored.Text != "hello" {
		t.Fatalf("message not persisted: %v %+v", err, stored)
	}
}

func TestSendToOfflineRecipientCountsUnseen(t *testing.T) {
	f := newRouterFixture(t, "alice", "bob")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.router.Send(ctx, "alice", "bob", Payload{Text: "ping"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if n := f.unseenFor(t, "bob", "alice"); n != 3 {
		t.Fatalf("expected 3 unseen, got %d", n)
	}

	conv, err := f.router.OpenConversation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("open conversation: %v", err)
	}
	if len(conv) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv))
	}
	for _, m := range conv {
		if !m.Seen {
			t.Fatalf("message %s should be seen after open", m.ID)
		}
	}
	if n := f.unseenFor(t, "bob", "alice"); n != 0 {
		t.Fatalf("expected counter reset, got %d", n)
	}
}

func TestSendPushFailureFallsBackToUnseen(t *testing.T) {
	f := newRouterFixture(t, "alice", "bob")
	bob := newFakeHandle("bob")
	bob.pushErr = ErrSendBufferFull
	f.registry.Register("bob", bob)

	if _, err := f.router.Send(context.Background(), "alice", "bob", Payload{Text: "hi"}); err != nil {
		t.Fatalf("push failure must not fail the send: %v", err)
	}
	if n := f.unseenFor(t, "bob", "alice"); n != 1 {
		t.Fatalf("expected 1 unseen, got %d", n)
	}
}

func TestSendValidation(t *testing.T) {
	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)

	tests := []struct {
		name      string
		recipient string
		payload   Payload
		wantErr   error
	}{
		{name: "empty", recipient: "bob", payload: Payload{Text: "   "}, wantErr: ErrEmptyMessage},
		{name: "both", recipient: "bob", payload: Payload{Text: "hi", Image: img}, wantErr: ErrInvalidPayload},
		{name: "bad image", recipient: "bob", payload: Payload{Image: "data:text/plain;base64,aGVsbG8="}, wantErr: ErrUnsupportedImage},
		{name: "unknown recipient", recipient: "ghost", payload: Payload{Text: "hi"}, wantErr: ErrInvalidRecipient},
		{name: "empty recipient", recipient: "", payload: Payload{Text: "hi"}, wantErr: ErrInvalidRecipient},
		{name: "image", recipient: "bob", payload: Payload{Image: img}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, "alice", "bob")
			ctx := context.Background()

			msg, err := f.router.Send(ctx, "alice", tt.recipient, tt.payload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				conv, _ := f.store.ListConversation(ctx, "alice", tt.recipient)
				if len(conv) != 0 {
					t.Fatalf("rejected send must not persist, found %d", len(conv))
				}
				if n := f.unseenFor(t, tt.recipient, "alice"); n != 0 {
					t.Fatalf("rejected send must not count unseen, got %d", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Image == "" || msg.Text != "" {
				t.Fatalf("unexpected message %+v", msg)
			}
		})
	}
}

func TestSelfSendIsAllowed(t *testing.T) {
	f := newRouterFixture(t, "alice")
	alice := newFakeHandle("alice")
	f.registry.Register("alice", alice)

	if _, err := f.router.Send(context.Background(), "alice", "alice", Payload{Text: "note"}); err != nil {
		t.Fatalf("self send: %v", err)
	}
	mustEvent(t, alice.events, EventNewMessage)
}

func TestMarkSeen(t *testing.T) {
	f := newRouterFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	msg, err := f.router.Send(ctx, "alice", "bob", Payload{Text: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := f.router.MarkSeen(ctx, msg.ID, "carol"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.router.MarkSeen(ctx, msg.ID, "alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("sender cannot mark seen, got %v", err)
	}
	stored, _ := f.store.GetMessage(ctx, msg.ID)
	if stored.Seen {
		t.Fatal("unauthorized mark must leave seen unchanged")
	}

	for i := 0; i < 2; i++ {
		if err := f.router.MarkSeen(ctx, msg.ID, "bob"); err != nil {
			t.Fatalf("mark seen #%d: %v", i+1, err)
		}
	}
	stored, _ = f.store.GetMessage(ctx, msg.ID)
	if !stored.Seen {
		t.Fatal("message should be seen")
	}

	if err := f.router.MarkSeen(ctx, "missing", "bob"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestFetchConversationOrder(t *testing.T) {
	f := newRouterFixture(t, "alice", "bob")
	ctx := context.Background()

	texts := []string{"one", "two", "three", "four"}
	for i, text := range texts {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		if _, err := f.router.Send(ctx, from, to, Payload{Text: text}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	conv, err := f.router.FetchConversation(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(conv) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(conv))
	}
	for i, m := range conv {
		if m.Text != texts[i] {
			t.Fatalf("position %d: expected %q, got %q", i, texts[i], m.Text)
		}
	}
}

// failingMessages rejects every write.
type failingMessages struct {
	store.MessageStore
}

var errDiskFull = errors.New("disk full")

func (failingMessages) CreateMessage(context.Context, *store.Message) error {
	return errDiskFull
}

func TestSendStorageFailure(t *testing.T) {
	f := newRouterFixture(t, "alice", "bob")
	bob := newFakeHandle("bob")
	f.registry.Register("bob", bob)

	r := NewRouter(f.store, failingMessages{f.store}, f.registry, f.unseen, nil)
	_, err := r.Send(context.Background(), "alice", "bob", Payload{Text: "hi"})
	if !errors.Is(err, ErrStorageUnavailable) || !errors.Is(err, errDiskFull) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}

	select {
	case ev := <-bob.events:
		t.Fatalf("nothing should be pushed on storage failure, got %+v", ev)
	default:
	}
	if n := f.unseenFor(t, "bob", "alice"); n != 0 {
		t.Fatalf("storage failure must not count unseen, got %d", n)
	}
}

func TestErrorForMapsSentinels(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{ErrInvalidRecipient, ErrCodeInvalidRecipient},
		{ErrEmptyMessage, ErrCodeEmptyMessage},
		{ErrInvalidPayload, ErrCodeInvalidPayload},
		{ErrUnauthorized, ErrCodeUnauthorized},
		{ErrMessageNotFound, ErrCodeMessageNotFound},
		{storageError(errDiskFull), ErrCodeStorageUnavailable},
		{errors.New("boom"), ErrCodeInternal},
	}
	for _, tt := range tests {
		if got := ErrorFor(tt.err).Code; got != tt.code {
			t.Errorf("ErrorFor(%v) = %s, want %s", tt.err, got, tt.code)
		}
	}
}

// gatedMessages holds CreateMessage after the write until release is closed.
type gatedMessages struct {
	store.MessageStore
	persisted chan struct{}
	release   chan struct{}
}

func (g *gatedMessages) CreateMessage(ctx context.Context, m *store.Message) error {
	if err := g.MessageStore.CreateMessage(ctx, m); err != nil {
		return err
	}
	close(g.persisted)
	<-g.release
	return nil
}

func TestOpenConversationWaitsForInflightSend(t *testing.T) {
	f := newRouterFixture(t, "alice", "bob")
	gate := &gatedMessages{MessageStore: f.store, persisted: make(chan struct{}), release: make(chan struct{})}
	r := NewRouter(f.store, gate, f.registry, f.unseen, nil)

	sent := make(chan error, 1)
	go func() {
		_, err := r.Send(context.Background(), "alice", "bob", Payload{Text: "racing"})
		sent <- err
	}()
	<-gate.persisted

	opened := make(chan error, 1)
	go func() {
		_, err := r.OpenConversation(context.Background(), "bob", "alice")
		opened <- err
	}()

	select {
	case err := <-opened:
		t.Fatalf("open finished while a send to the same pair was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	if err := <-sent; err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := <-opened; err != nil {
		t.Fatalf("open: %v", err)
	}

	conv, err := f.router.FetchConversation(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var unseen int64
	for _, m := range conv {
		if !m.Seen {
			unseen++
		}
	}
	if n := f.unseenFor(t, "bob", "alice"); n != unseen {
		t.Fatalf("unseen count %d does not match %d unseen stored messages", n, unseen)
	}
}

func TestOpenConversationDoesNotBlockOtherPairs(t *testing.T) {
	f := newRouterFixture(t, "alice", "bob", "carol")
	gate := &gatedMessages{MessageStore: f.store, persisted: make(chan struct{}), release: make(chan struct{})}
	r := NewRouter(f.store, gate, f.registry, f.unseen, nil)
	defer close(gate.release)

	go func() {
		_, _ = r.Send(context.Background(), "alice", "bob", Payload{Text: "held"})
	}()
	<-gate.persisted

	done := make(chan error, 1)
	go func() {
		_, err := r.OpenConversation(context.Background(), "carol", "bob")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("open: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("open for an unrelated pair blocked")
	}
}
