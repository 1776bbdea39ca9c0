// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling and keeps conversations and their
// messages in two relational tables with cascade delete.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/werkbank-dev/werkbank/pkg/api"
	"github.com/werkbank-dev/werkbank/pkg/storage"
)

// Store is a PostgreSQL-backed conversation store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// CreateConversation inserts a conversation row and any initial messages
// in a single transaction.
func (s *Store) CreateConversation(ctx context.Context, conv *api.Conversation) error {
	tenantID := storage.GetTenant(ctx)

	createdAt := conv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, tenant_id, created_at)
		VALUES ($1, $2, $3)
	`, conv.ID, tenantID, createdAt)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	for _, msg := range conv.Messages {
		_, err = tx.Exec(ctx, `
			INSERT INTO messages (conversation_id, role, content)
			VALUES ($1, $2, $3)
		`, conv.ID, string(msg.Role), msg.Content)
		if err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// GetConversation retrieves a conversation with its messages in insertion order.
func (s *Store) GetConversation(ctx context.Context, id string) (*api.Conversation, error) {
	tenantID := storage.GetTenant(ctx)

	query := "SELECT id, created_at FROM conversations WHERE id = $1"
	args := []any{id}
	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	var conv api.Conversation
	err := s.pool.QueryRow(ctx, query, args...).Scan(&conv.ID, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT role, content FROM messages
		WHERE conversation_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	conv.Messages = []api.Message{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		conv.Messages = append(conv.Messages, api.Message{Role: api.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return &conv, nil
}

// AppendMessage appends a message to an existing conversation. The insert
// selects from conversations so tenant scoping and existence are checked
// in one statement.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg api.Message) error {
	tenantID := storage.GetTenant(ctx)

	query := `
		INSERT INTO messages (conversation_id, role, content)
		SELECT id, $2, $3 FROM conversations WHERE id = $1
	`
	args := []any{conversationID, string(msg.Role), msg.Content}
	if tenantID != "" {
		query += " AND tenant_id = $4"
		args = append(args, tenantID)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DeleteConversation removes a conversation; messages go with it via
// the FK cascade.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tenantID := storage.GetTenant(ctx)

	query := "DELETE FROM conversations WHERE id = $1"
	args := []any{id}
	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
