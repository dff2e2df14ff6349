package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
)

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Bio          string
	ProfilePic   string // data URL, empty when unset
	CreatedAt    time.Time
}

// ProfileUpdate carries the mutable profile fields. Nil pointers are left unchanged.
type ProfileUpdate struct {
	FullName   *string
	Bio        *string
	ProfilePic *string
}

// Message represents a persisted direct message.
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Text        string
	Image       string
	Seen        bool
	CreatedAt   time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user. Returns ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfile applies the non-nil fields and returns the updated user.
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error)

	// ListUsersExcept lists every user other than id, ordered by name.
	ListUsersExcept(ctx context.Context, id string) ([]*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// MarkMessageSeen flips seen to true. Reports whether the row changed.
	MarkMessageSeen(ctx context.Context, id string) (bool, error)

	// MarkConversationSeen marks every unseen message from senderID to recipientID as seen.
	MarkConversationSeen(ctx context.Context, senderID, recipientID string) (int64, error)

	// ListConversation returns messages exchanged between two users, oldest first.
	ListConversation(ctx context.Context, userA, userB string) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
