package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	conversationIDPrefix = "conv_"
	fileIDPrefix         = "file_"
	callIDPrefix         = "call_"
)

var (
	conversationIDPattern = regexp.MustCompile(`^conv_[a-zA-Z0-9]{24}$`)
	fileIDPattern         = regexp.MustCompile(`^file_[a-zA-Z0-9]{24}$`)
)

// NewConversationID generates a new conversation ID with the "conv_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewConversationID() string {
	return conversationIDPrefix + randomAlphanumeric(idLength)
}

// NewFileID generates a new upload ID with the "file_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewFileID() string {
	return fileIDPrefix + randomAlphanumeric(idLength)
}

// NewCallID generates a new tool-call ID with the "call_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewCallID() string {
	return callIDPrefix + randomAlphanumeric(idLength)
}

// ValidateConversationID checks whether the given string is a valid
// conversation ID (matches "conv_" + 24 alphanumeric characters).
func ValidateConversationID(id string) bool {
	return conversationIDPattern.MatchString(id)
}

// ValidateFileID checks whether the given string is a valid upload ID
// (matches "file_" + 24 alphanumeric characters).
func ValidateFileID(id string) bool {
	return fileIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
