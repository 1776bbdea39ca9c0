package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/werkbank-dev/werkbank/pkg/api"
	"github.com/werkbank-dev/werkbank/pkg/engine"
	"github.com/werkbank-dev/werkbank/pkg/files"
	"github.com/werkbank-dev/werkbank/pkg/storage"
	"github.com/werkbank-dev/werkbank/pkg/transport"
)

// Adapter serves the chat API over HTTP. It routes requests, validates
// and deserializes them, dispatches to the query pipeline, and serializes
// results back to the client.
type Adapter struct {
	runner  transport.QueryRunner
	store   transport.ConversationStore
	uploads transport.UploadStore // nil disables the upload endpoints
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize   int64                // JSON request bodies
	MaxUploadSize int64                // multipart upload bodies
	Validation    api.ValidationConfig // chat request limits
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:   1 << 20,  // 1 MB
		MaxUploadSize: 50 << 20, // 50 MB
		Validation:    api.DefaultValidationConfig(),
	}
}

// NewAdapter creates an HTTP adapter around the query pipeline. The
// conversation store serves the history endpoints; the upload store is
// optional and, when nil, the upload endpoints report that file handling
// is not available.
func NewAdapter(runner transport.QueryRunner, store transport.ConversationStore, uploads transport.UploadStore, cfg Config) *Adapter {
	a := &Adapter{
		runner:  runner,
		store:   store,
		uploads: uploads,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("POST /api/chat", a.handleChat)
	a.mux.HandleFunc("GET /api/conversations/{id}", a.handleGetConversation)
	a.mux.HandleFunc("DELETE /api/conversations/{id}", a.handleDeleteConversation)
	a.mux.HandleFunc("POST /api/upload", a.handleUpload)
	a.mux.HandleFunc("DELETE /api/upload/{id}", a.handleDeleteUpload)
	a.mux.HandleFunc("GET /api/health", a.handleHealth)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. Cross-cutting middleware
// (recovery, request IDs, logging, metrics, auth) is layered on by the
// Server; the adapter itself only routes.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// handleChat handles POST /api/chat.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	if apiErr := api.ValidateChatRequest(&req, a.config.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	engReq := engine.Request{
		Query:          req.Query,
		ConversationID: req.ConversationID,
	}

	// A well-formed file_id that resolves to nothing is tolerated: the
	// query still runs, just without the file. Matches upload expiry
	// semantics, where a conversation can outlive its attachments.
	if req.FileID != "" {
		path, err := a.resolveFile(r, req.FileID)
		if err != nil {
			transport.WriteAPIError(w, api.NewServerError(err.Error()))
			return
		}
		engReq.FilePath = path
	}

	result, err := a.runner.ProcessQuery(r.Context(), engReq)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			transport.WriteAPIError(w, apiErr)
		} else {
			transport.WriteAPIError(w, api.NewServerError(err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusOK, chatResponseFrom(result))
}

// resolveFile maps an upload ID to its stored path. Unknown IDs resolve
// to an empty path; only backend failures surface as errors.
func (a *Adapter) resolveFile(r *http.Request, fileID string) (string, error) {
	if a.uploads == nil {
		slog.Warn("chat request references a file but no file store is configured",
			"file_id", fileID,
			"request_id", transport.RequestIDFromContext(r.Context()),
		)
		return "", nil
	}

	path, err := a.uploads.Resolve(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			slog.Warn("chat request references unknown file",
				"file_id", fileID,
				"request_id", transport.RequestIDFromContext(r.Context()),
			)
			return "", nil
		}
		return "", err
	}
	return path, nil
}

// chatResponseFrom converts a pipeline result to the wire shape. Empty
// traces serialize as [] and {} rather than null.
func chatResponseFrom(result *engine.PipelineResult) api.ChatResponse {
	toolsUsed := result.ToolsUsed
	if toolsUsed == nil {
		toolsUsed = []string{}
	}

	toolResults := make(map[string]any, len(result.ToolResults))
	for name, res := range result.ToolResults {
		toolResults[name] = res
	}

	return api.ChatResponse{
		ConversationID: result.ConversationID,
		Query:          result.Query,
		Response:       result.Answer,
		ToolsUsed:      toolsUsed,
		ToolResults:    toolResults,
	}
}

// handleGetConversation handles GET /api/conversations/{id}.
func (a *Adapter) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateConversationID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed conversation ID"),
			http.StatusBadRequest,
		)
		return
	}

	conv, err := a.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("conversation "+id+" not found"))
		} else {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) {
				transport.WriteAPIError(w, apiErr)
			} else {
				transport.WriteAPIError(w, api.NewServerError(err.Error()))
			}
		}
		return
	}

	if conv.Messages == nil {
		conv.Messages = []api.Message{}
	}
	writeJSON(w, http.StatusOK, conv)
}

// handleDeleteConversation handles DELETE /api/conversations/{id}.
// Deleting a conversation that does not exist is a no-op success, so
// retries after a dropped response stay safe.
func (a *Adapter) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateConversationID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed conversation ID"),
			http.StatusBadRequest,
		)
		return
	}

	if err := a.store.DeleteConversation(r.Context(), id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		transport.WriteAPIError(w, api.NewServerError(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, api.StatusResponse{Status: "success"})
}

// handleUpload handles POST /api/upload. The file arrives as the "file"
// field of a multipart form.
func (a *Adapter) handleUpload(w http.ResponseWriter, r *http.Request) {
	if a.uploads == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "file uploads are not available (no file store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("file", fmt.Sprintf("upload too large (max %d bytes)", a.config.MaxUploadSize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("file", "expected a multipart form with a 'file' field"),
			http.StatusBadRequest,
		)
		return
	}
	defer file.Close()

	entry, err := a.uploads.Save(r.Context(), file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, files.ErrTooLarge) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("file", "file exceeds maximum size"),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteAPIError(w, api.NewServerError(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, api.FileUploadResponse{
		FileID:      entry.ID,
		Filename:    entry.Filename,
		ContentType: entry.ContentType,
		Size:        entry.Size,
	})
}

// handleDeleteUpload handles DELETE /api/upload/{id}.
func (a *Adapter) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateFileID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed file ID"),
			http.StatusBadRequest,
		)
		return
	}

	if a.uploads == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "file uploads are not available (no file store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	if err := a.uploads.Delete(r.Context(), id); err != nil {
		if errors.Is(err, files.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("file "+id+" not found"))
		} else {
			transport.WriteAPIError(w, api.NewServerError(err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusOK, api.StatusResponse{Status: "success"})
}

// handleHealth handles GET /api/health.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok", Version: api.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
