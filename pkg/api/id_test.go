package api

import (
	"testing"
)

func TestNewConversationID(t *testing.T) {
	id := NewConversationID()
	if !ValidateConversationID(id) {
		t.Errorf("NewConversationID() = %q, want valid conversation ID", id)
	}
}

func TestNewFileID(t *testing.T) {
	id := NewFileID()
	if !ValidateFileID(id) {
		t.Errorf("NewFileID() = %q, want valid file ID", id)
	}
}

func TestValidateConversationID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "conv_abcdefghijklmnopqrstuvwx", true},
		{"valid mixed case", "conv_AbCdEfGhIjKlMnOpQrStUvWx", true},
		{"valid digits", "conv_123456789012345678901234", true},
		{"wrong prefix", "file_abcdefghijklmnopqrstuvwx", false},
		{"no prefix", "abcdefghijklmnopqrstuvwxyz1234", false},
		{"too short", "conv_abc", false},
		{"too long", "conv_abcdefghijklmnopqrstuvwxy", false},
		{"special chars", "conv_abcdefghijklmnopqrstuv!@", false},
		{"empty", "", false},
		{"prefix only", "conv_", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateConversationID(tt.id); got != tt.want {
				t.Errorf("ValidateConversationID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestValidateFileID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "file_abcdefghijklmnopqrstuvwx", true},
		{"wrong prefix", "conv_abcdefghijklmnopqrstuvwx", false},
		{"too short", "file_abc", false},
		{"special chars", "file_abcdefghijklmnopqrstuv!@", false},
		{"empty", "", false},
		{"prefix only", "file_", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateFileID(tt.id); got != tt.want {
				t.Errorf("ValidateFileID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIDUniqueness(t *testing.T) {
	const count = 1000
	seen := make(map[string]bool, count)

	for i := 0; i < count; i++ {
		id := NewConversationID()
		if seen[id] {
			t.Fatalf("duplicate conversation ID after %d generations: %s", i, id)
		}
		seen[id] = true
	}

	seen = make(map[string]bool, count)
	for i := 0; i < count; i++ {
		id := NewCallID()
		if seen[id] {
			t.Fatalf("duplicate call ID after %d generations: %s", i, id)
		}
		seen[id] = true
	}
}
