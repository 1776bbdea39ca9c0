// Package memory provides an in-memory implementation of storage.Store
// for testing and lightweight deployments. Conversations are stored in
// memory and lost when the process restarts. Optional LRU eviction limits
// memory usage.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/api"
	"github.com/werkbank-dev/werkbank/pkg/storage"
)

// entry holds a stored conversation and its metadata.
type entry struct {
	conv     *api.Conversation
	tenantID string
	lruElem  *list.Element // position in LRU list
}

// Store is an in-memory conversation store with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used conversation is
// evicted when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// CreateConversation stores a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *api.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[conv.ID]; exists {
		return storage.ErrConflict
	}

	tenantID := storage.GetTenant(ctx)

	// Evict if at capacity.
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	stored := &api.Conversation{
		ID:        conv.ID,
		Messages:  append([]api.Message(nil), conv.Messages...),
		CreatedAt: conv.CreatedAt,
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	elem := s.lruList.PushFront(conv.ID)
	s.entries[conv.ID] = &entry{
		conv:     stored,
		tenantID: tenantID,
		lruElem:  elem,
	}

	return nil
}

// GetConversation retrieves a conversation by ID with messages in insertion
// order. The returned value holds a copy of the message slice, so callers
// never observe later appends. Scoped by tenant when one is present in the
// context.
func (s *Store) GetConversation(ctx context.Context, id string) (*api.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	s.lruList.MoveToFront(e.lruElem)

	return &api.Conversation{
		ID:        e.conv.ID,
		Messages:  append([]api.Message(nil), e.conv.Messages...),
		CreatedAt: e.conv.CreatedAt,
	}, nil
}

// AppendMessage appends a message to an existing conversation.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, conversationID)
	if err != nil {
		return err
	}

	e.conv.Messages = append(e.conv.Messages, msg)
	s.lruList.MoveToFront(e.lruElem)
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	s.lruList.Remove(e.lruElem)
	delete(s.entries, id)
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// lookup finds an entry by ID under tenant scoping.
// Must be called with s.mu held.
func (s *Store) lookup(ctx context.Context, id string) (*entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	tenantID := storage.GetTenant(ctx)
	if tenantID != "" && e.tenantID != tenantID {
		return nil, storage.ErrNotFound
	}

	return e, nil
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
