package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxQueryBytes int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxQueryBytes: 64 * 1024, // 64KB
	}
}

// ValidateChatRequest checks a ChatRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request
// is valid.
func ValidateChatRequest(req *ChatRequest, cfg ValidationConfig) *APIError {
	if req.Query == "" {
		return NewInvalidRequestError("query", "query is required")
	}

	if cfg.MaxQueryBytes > 0 && len(req.Query) > cfg.MaxQueryBytes {
		return NewInvalidRequestError("query",
			fmt.Sprintf("query exceeds maximum of %d bytes", cfg.MaxQueryBytes))
	}

	if req.ConversationID != "" && !ValidateConversationID(req.ConversationID) {
		return NewInvalidRequestError("conversation_id", "invalid conversation ID format")
	}

	if req.FileID != "" && !ValidateFileID(req.FileID) {
		return NewInvalidRequestError("file_id", "invalid file ID format")
	}

	return nil
}
