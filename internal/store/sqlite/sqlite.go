package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/chatline-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// New opens the database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; ":memory:" requires it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies Schema to db.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

const userColumns = `id, email, full_name, password_hash, bio, profile_pic, created_at`

// CreateUser inserts a user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, email, full_name, password_hash, bio, profile_pic, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.FullName, user.PasswordHash, user.Bio, user.ProfilePic, user.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", store.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

// UpdateProfile applies the non-nil fields of update.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id string, update store.ProfileUpdate) (*store.User, error) {
	var sets []string
	var args []any
	if update.FullName != nil {
		sets = append(sets, "full_name = ?")
		args = append(args, *update.FullName)
	}
	if update.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, *update.Bio)
	}
	if update.ProfilePic != nil {
		sets = append(sets, "profile_pic = ?")
		args = append(args, *update.ProfilePic)
	}

	if len(sets) > 0 {
		query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
		args = append(args, id)
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return nil, fmt.Errorf("update user: %w", store.ErrNotFound)
		}
	}

	return s.GetUserByID(ctx, id)
}

// ListUsersExcept lists every user other than id.
func (s *SQLiteStore) ListUsersExcept(ctx context.Context, id string) ([]*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id <> ? ORDER BY full_name ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ==== MessageStore implementation ====

const messageColumns = `id, sender_id, recipient_id, text, image, seen, created_at`

// CreateMessage persists a message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, recipient_id, text, image, seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.SenderID, msg.RecipientID, msg.Text, msg.Image, msg.Seen, msg.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert message: %w", store.ErrDuplicate)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	return scanMessage(s.db.QueryRowContext(ctx, query, id))
}

// MarkMessageSeen flips seen to true if it was false.
func (s *SQLiteStore) MarkMessageSeen(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET seen = 1 WHERE id = ? AND seen = 0`, id)
	if err != nil {
		return false, fmt.Errorf("update message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkConversationSeen marks unseen messages from senderID to recipientID as seen.
func (s *SQLiteStore) MarkConversationSeen(ctx context.Context, senderID, recipientID string) (int64, error) {
	query := `UPDATE messages SET seen = 1 WHERE sender_id = ? AND recipient_id = ? AND seen = 0`
	result, err := s.db.ExecContext(ctx, query, senderID, recipientID)
	if err != nil {
		return 0, fmt.Errorf("update messages: %w", err)
	}
	return result.RowsAffected()
}

// ListConversation returns messages exchanged between userA and userB, oldest first.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB string) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?)
		   OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.Bio,
		&user.ProfilePic,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func scanMessage(row scanner) (*store.Message, error) {
	var msg store.Message
	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.RecipientID,
		&msg.Text,
		&msg.Image,
		&msg.Seen,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &msg, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
