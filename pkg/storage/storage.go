package storage

import (
	"context"

	"github.com/werkbank-dev/werkbank/pkg/api"
)

// Store persists conversations and their ordered messages. Implementations
// scope all operations by the tenant carried in the context (see SetTenant);
// an empty tenant means single-tenant mode.
type Store interface {
	// CreateConversation stores a new conversation under its ID.
	// Returns ErrConflict if the ID already exists.
	CreateConversation(ctx context.Context, conv *api.Conversation) error

	// GetConversation retrieves a conversation with its messages in
	// insertion order. Returns ErrNotFound if it does not exist.
	GetConversation(ctx context.Context, id string) (*api.Conversation, error)

	// AppendMessage appends a message to an existing conversation.
	// Returns ErrNotFound if the conversation does not exist.
	AppendMessage(ctx context.Context, conversationID string, msg api.Message) error

	// DeleteConversation removes a conversation and its messages.
	// Returns ErrNotFound if it does not exist.
	DeleteConversation(ctx context.Context, id string) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
