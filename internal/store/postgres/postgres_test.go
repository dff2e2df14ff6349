package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/chatline-server/internal/store"
)

// Set CHATLINE_TEST_POSTGRES_DSN to a scratch database to run these tests.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("CHATLINE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHATLINE_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &store.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", FullName: "A", PasswordHash: "h", CreatedAt: time.Now()}
	b := &store.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", FullName: "B", PasswordHash: "h", CreatedAt: time.Now()}
	for _, u := range []*store.User{a, b} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	if err := s.CreateUser(ctx, &store.User{ID: uuid.NewString(), Email: a.Email, FullName: "dup", PasswordHash: "h", CreatedAt: time.Now()}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	msg := &store.Message{ID: uuid.NewString(), SenderID: a.ID, RecipientID: b.ID, Text: "hi", CreatedAt: time.Now()}
	if err := s.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	conv, err := s.ListConversation(ctx, b.ID, a.ID)
	if err != nil || len(conv) != 1 || conv[0].Text != "hi" {
		t.Fatalf("unexpected conversation: %v %+v", err, conv)
	}

	changed, err := s.MarkMessageSeen(ctx, msg.ID)
	if err != nil || !changed {
		t.Fatalf("mark seen: changed=%v err=%v", changed, err)
	}
	changed, err = s.MarkMessageSeen(ctx, msg.ID)
	if err != nil || changed {
		t.Fatalf("second mark should be a no-op: changed=%v err=%v", changed, err)
	}
}
