package transport

import (
	"context"
	"io"

	"github.com/werkbank-dev/werkbank/pkg/api"
	"github.com/werkbank-dev/werkbank/pkg/engine"
	"github.com/werkbank-dev/werkbank/pkg/files"
)

// QueryRunner runs one chat query through the selection/execution/synthesis
// pipeline. It is the primary handler contract; *engine.Engine satisfies it.
// Implementations return an error only when the pipeline aborts entirely
// (history persistence failure or context cancellation) — tool and oracle
// failures degrade into the result instead.
type QueryRunner interface {
	ProcessQuery(ctx context.Context, req engine.Request) (*engine.PipelineResult, error)
}

// QueryRunnerFunc is an adapter that allows using an ordinary function as
// a QueryRunner.
type QueryRunnerFunc func(ctx context.Context, req engine.Request) (*engine.PipelineResult, error)

// ProcessQuery calls f(ctx, req).
func (f QueryRunnerFunc) ProcessQuery(ctx context.Context, req engine.Request) (*engine.PipelineResult, error) {
	return f(ctx, req)
}

// ConversationStore serves the conversation endpoints. It is the subset of
// the storage contract the transport needs: reads return messages in
// insertion order and storage.ErrNotFound for unknown IDs.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*api.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
}

// UploadStore persists uploaded files that chat requests reference by ID.
// Save returns files.ErrTooLarge when the payload exceeds the configured
// cap; Resolve and Delete return files.ErrNotFound for unknown IDs.
type UploadStore interface {
	Save(ctx context.Context, r io.Reader, filename, contentType string) (files.Entry, error)
	Resolve(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
}
