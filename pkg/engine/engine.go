package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/werkbank-dev/werkbank/pkg/api"
	"github.com/werkbank-dev/werkbank/pkg/observability"
	"github.com/werkbank-dev/werkbank/pkg/provider"
	"github.com/werkbank-dev/werkbank/pkg/storage"
	"github.com/werkbank-dev/werkbank/pkg/tools"
	"github.com/werkbank-dev/werkbank/pkg/tools/registry"
)

// Request is one query to run through the pipeline.
type Request struct {
	// Query is the user's natural-language query.
	Query string

	// ConversationID continues an existing conversation. Empty means a
	// new conversation is created.
	ConversationID string

	// FilePath is the resolved local path of an uploaded file referenced
	// by the request, or empty. File-accepting tools receive it when the
	// oracle does not pick a source itself.
	FilePath string
}

// PipelineResult is the outcome of one run. ToolsUsed lists tool names in
// execution order, including conditionally chained invocations, and is the
// authoritative trace; ToolResults collapses repeated names to the last
// occurrence.
type PipelineResult struct {
	ConversationID string
	Query          string
	Answer         string
	ToolsUsed      []string
	ToolResults    map[string]tools.Result
}

// Engine orchestrates the query pipeline: select via the decision oracle,
// execute through the registry, synthesize the final answer, and record
// the exchange in conversation history.
type Engine struct {
	provider provider.Provider
	registry *registry.Registry
	store    storage.Store
	cfg      Config

	locks *convLocks
}

// New creates an Engine. Provider, registry, and store must not be nil.
func New(p provider.Provider, reg *registry.Registry, store storage.Store, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("engine: registry must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("engine: store must not be nil")
	}
	return &Engine{
		provider: p,
		registry: reg,
		store:    store,
		cfg:      cfg,
		locks:    newConvLocks(),
	}, nil
}

// ProcessQuery runs one query through the pipeline. Runs that share a
// conversation ID are serialized for their whole duration; distinct
// conversations proceed in parallel.
//
// Tool and oracle failures degrade into the result rather than aborting:
// only a history write failure or caller cancellation returns an error.
func (e *Engine) ProcessQuery(ctx context.Context, req Request) (*PipelineResult, error) {
	convID := req.ConversationID
	if convID == "" {
		convID = api.NewConversationID()
	}

	unlock := e.locks.lock(convID)
	defer unlock()

	if err := e.ensureConversation(ctx, convID); err != nil {
		observability.QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := e.store.AppendMessage(ctx, convID, api.Message{Role: api.RoleUser, Content: req.Query}); err != nil {
		observability.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("appending user message: %w", err)
	}

	slog.Info("processing query",
		"conversation_id", convID,
		"query", req.Query,
	)

	invocations := e.selectTools(ctx, req.Query)

	names := make([]string, len(invocations))
	for i, inv := range invocations {
		names[i] = inv.Tool
	}
	slog.Info("selected tools", "conversation_id", convID, "tools", names)

	steps := e.executeTools(ctx, invocations, req.Query, req.FilePath)

	if err := ctx.Err(); err != nil {
		observability.QueriesTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	answer := e.synthesize(ctx, req.Query, steps)

	// A run abandoned mid-synthesis must not leave a half-baked assistant
	// message in history.
	if err := ctx.Err(); err != nil {
		observability.QueriesTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	if err := e.store.AppendMessage(ctx, convID, api.Message{Role: api.RoleAssistant, Content: answer}); err != nil {
		observability.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("appending assistant message: %w", err)
	}

	toolsUsed := make([]string, 0, len(steps))
	toolResults := make(map[string]tools.Result, len(steps))
	for _, step := range steps {
		toolsUsed = append(toolsUsed, step.Tool)
		toolResults[step.Tool] = step.Result
	}

	observability.QueriesTotal.WithLabelValues("ok").Inc()

	return &PipelineResult{
		ConversationID: convID,
		Query:          req.Query,
		Answer:         answer,
		ToolsUsed:      toolsUsed,
		ToolResults:    toolResults,
	}, nil
}

// ensureConversation creates the conversation if it does not exist yet.
// Callers may continue a conversation with a client-generated ID.
func (e *Engine) ensureConversation(ctx context.Context, id string) error {
	_, err := e.store.GetConversation(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("loading conversation: %w", err)
	}

	err = e.store.CreateConversation(ctx, &api.Conversation{ID: id})
	// Another instance may have created it between the lookup and here.
	if err != nil && !errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("creating conversation: %w", err)
	}
	return nil
}
