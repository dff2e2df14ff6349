package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vovakirdan/chatline-server/internal/store"
)

// Schema creates the tables used by PostgresStore. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	full_name     TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	bio           TEXT NOT NULL DEFAULT '',
	profile_pic   TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq          BIGSERIAL PRIMARY KEY,
	id           TEXT NOT NULL UNIQUE,
	sender_id    TEXT NOT NULL REFERENCES users(id),
	recipient_id TEXT NOT NULL REFERENCES users(id),
	text         TEXT NOT NULL DEFAULT '',
	image        TEXT NOT NULL DEFAULT '',
	seen         BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, recipient_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unseen ON messages(recipient_id, seen);
`

const uniqueViolation = "23505"

// PostgresStore implements store.Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*PostgresStore)(nil)

// Connect creates a pgx pool for dsn, verifies it with a ping and applies Schema.
func Connect(ctx context.Context, dsn string, opts ...func(*pgxpool.Config)) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	if cfg.MaxConns == 0 {
		cfg.MaxConns = 4
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Ping verifies the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const userColumns = `id, email, full_name, password_hash, bio, profile_pic, created_at`

// CreateUser inserts a user.
func (s *PostgresStore) CreateUser(ctx context.Context, user *store.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, bio, profile_pic, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.FullName, user.PasswordHash, user.Bio, user.ProfilePic, user.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", store.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// UpdateProfile applies the non-nil fields of update.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, update store.ProfileUpdate) (*store.User, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET
			full_name   = COALESCE($2, full_name),
			bio         = COALESCE($3, bio),
			profile_pic = COALESCE($4, profile_pic)
		WHERE id = $1
	`, id, update.FullName, update.Bio, update.ProfilePic)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("update user: %w", store.ErrNotFound)
	}
	return s.GetUserByID(ctx, id)
}

// ListUsersExcept lists every user other than id.
func (s *PostgresStore) ListUsersExcept(ctx context.Context, id string) ([]*store.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id <> $1 ORDER BY full_name, id`, id)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const messageColumns = `id, sender_id, recipient_id, text, image, seen, created_at`

// CreateMessage persists a message.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, text, image, seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.SenderID, msg.RecipientID, msg.Text, msg.Image, msg.Seen, msg.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert message: %w", store.ErrDuplicate)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	return scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

// MarkMessageSeen flips seen to true if it was false.
func (s *PostgresStore) MarkMessageSeen(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET seen = TRUE WHERE id = $1 AND NOT seen`, id)
	if err != nil {
		return false, fmt.Errorf("update message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkConversationSeen marks unseen messages from senderID to recipientID as seen.
func (s *PostgresStore) MarkConversationSeen(ctx context.Context, senderID, recipientID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET seen = TRUE
		WHERE sender_id = $1 AND recipient_id = $2 AND NOT seen
	`, senderID, recipientID)
	if err != nil {
		return 0, fmt.Errorf("update messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListConversation returns messages exchanged between userA and userB, oldest first.
func (s *PostgresStore) ListConversation(ctx context.Context, userA, userB string) ([]*store.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at ASC, seq ASC
	`, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Bio, &u.ProfilePic, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func scanMessage(row pgx.Row) (*store.Message, error) {
	var m store.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Text, &m.Image, &m.Seen, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
