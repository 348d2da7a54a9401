package idgen

import (
	"github.com/google/uuid"
)

// PrefixRequest marks request IDs generated by this service, as opposed to
// IDs callers supplied themselves.
const PrefixRequest = "req_"

// NewRequest generates a new request ID with the req_ prefix
func NewRequest() string {
	return PrefixRequest + uuid.New().String()
}

// New generates a generic UUID without prefix
func New() string {
	return uuid.New().String()
}
