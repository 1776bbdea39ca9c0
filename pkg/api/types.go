package api

import "time"

// Version is the service version reported by the health endpoint.
const Version = "0.1.0"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation carries the stored history of one conversation.
type Conversation struct {
	ID        string    `json:"conversation_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ChatRequest is the body of POST /api/chat. ConversationID continues an
// existing conversation; when empty a new one is created. FileID references
// a previously uploaded file made available to file-accepting tools.
type ChatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	FileID         string `json:"file_id,omitempty"`
}

// ChatResponse is the result of one query run. ToolsUsed lists tool names
// in execution order, including conditionally chained invocations.
// ToolResults maps tool name to its last result payload; repeated
// invocations of the same tool collapse to the final occurrence, so
// ToolsUsed is the authoritative trace.
type ChatResponse struct {
	ConversationID string         `json:"conversation_id"`
	Query          string         `json:"query"`
	Response       string         `json:"response"`
	ToolsUsed      []string       `json:"tools_used"`
	ToolResults    map[string]any `json:"tool_results"`
}

// FileUploadResponse describes a stored upload.
type FileUploadResponse struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// StatusResponse acknowledges a state-changing request (e.g. delete).
type StatusResponse struct {
	Status string `json:"status"`
}
