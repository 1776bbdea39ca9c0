// Package files stores uploaded files on local disk so file-accepting
// tools can read them by path. Chat requests reference uploads by file
// ID; the transport resolves the ID to a path before the pipeline runs.
//
// The index lives in memory: uploads do not survive a process restart.
// Blobs are written under a single configured directory with the file ID
// as the name, so nothing from the client-supplied filename reaches the
// filesystem except a sanitized extension.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/werkbank-dev/werkbank/pkg/api"
	"github.com/werkbank-dev/werkbank/pkg/storage"
)

var (
	// ErrNotFound is returned when no upload exists under the given ID.
	ErrNotFound = errors.New("file not found")

	// ErrTooLarge is returned when an upload exceeds the size cap.
	ErrTooLarge = errors.New("file exceeds maximum size")
)

// DefaultMaxSize caps uploads at 32 MiB unless configured otherwise.
const DefaultMaxSize = 32 << 20

// extPattern accepts short alphanumeric extensions only.
var extPattern = regexp.MustCompile(`^\.[a-zA-Z0-9]{1,10}$`)

// Entry describes one stored upload.
type Entry struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
	Path        string
	CreatedAt   time.Time
}

type indexed struct {
	meta     Entry
	tenantID string
}

// Store is a local-disk upload store with an in-memory index. All methods
// are safe for concurrent use. Lookups are scoped to the tenant carried
// in the context, matching conversation storage.
type Store struct {
	dir     string
	maxSize int64

	mu      sync.RWMutex
	entries map[string]indexed
}

// New creates a Store rooted at dir, creating the directory if needed.
// maxSize <= 0 selects DefaultMaxSize.
func New(dir string, maxSize int64) (*Store, error) {
	if dir == "" {
		return nil, errors.New("files: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		dir:     dir,
		maxSize: maxSize,
		entries: make(map[string]indexed),
	}, nil
}

// Save stores the reader's content as a new upload and returns its entry.
// Content larger than the size cap is rejected with ErrTooLarge and
// nothing is kept on disk.
func (s *Store) Save(ctx context.Context, r io.Reader, filename, contentType string) (Entry, error) {
	id := api.NewFileID()
	path := filepath.Join(s.dir, id+sanitizeExt(filename))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return Entry{}, fmt.Errorf("creating upload file: %w", err)
	}

	// Read one byte past the cap so oversized input is detectable.
	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return Entry{}, fmt.Errorf("writing upload: %w", err)
	}
	if n > s.maxSize {
		os.Remove(path)
		return Entry{}, ErrTooLarge
	}

	entry := Entry{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Size:        n,
		Path:        path,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.entries[id] = indexed{meta: entry, tenantID: storage.GetTenant(ctx)}
	s.mu.Unlock()

	slog.Debug("stored upload",
		"file_id", id,
		"filename", filename,
		"size", n,
	)
	return entry, nil
}

// Resolve returns the local path of the upload with the given ID.
func (s *Store) Resolve(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.tenantID != storage.GetTenant(ctx) {
		return "", ErrNotFound
	}
	return e.meta.Path, nil
}

// Delete removes the upload's blob and index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.tenantID != storage.GetTenant(ctx) {
		return ErrNotFound
	}
	delete(s.entries, id)

	if err := os.Remove(e.meta.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing upload blob: %w", err)
	}

	slog.Debug("deleted upload", "file_id", id)
	return nil
}

// sanitizeExt returns the lowercase extension of the client filename when
// it is a short alphanumeric one, otherwise "".
func sanitizeExt(filename string) string {
	ext := filepath.Ext(filename)
	if !extPattern.MatchString(ext) {
		return ""
	}
	return strings.ToLower(ext)
}
