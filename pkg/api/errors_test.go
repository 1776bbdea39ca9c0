package api

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAPIErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			"with param",
			NewInvalidRequestError("query", "query is required"),
			"invalid_request: query is required (param: query)",
		},
		{
			"without param",
			NewServerError("something broke"),
			"server_error: something broke",
		},
		{
			"not found",
			NewNotFoundError("conversation not found"),
			"not_found: conversation not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := ErrorResponse{Error: NewInvalidRequestError("file_id", "invalid file ID format")}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	s := string(data)
	for _, want := range []string{`"error"`, `"type":"invalid_request"`, `"param":"file_id"`} {
		if !strings.Contains(s, want) {
			t.Errorf("marshaled error %s missing %s", s, want)
		}
	}
	if strings.Contains(s, `"code"`) {
		t.Errorf("empty code should be omitted, got %s", s)
	}
}

func TestErrorConstructorTypes(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want ErrorType
	}{
		{"invalid request", NewInvalidRequestError("x", "m"), ErrorTypeInvalidRequest},
		{"not found", NewNotFoundError("m"), ErrorTypeNotFound},
		{"server", NewServerError("m"), ErrorTypeServerError},
		{"oracle", NewOracleError("m"), ErrorTypeOracleError},
		{"too many requests", NewTooManyRequestsError("m"), ErrorTypeTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.want {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.want)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}
