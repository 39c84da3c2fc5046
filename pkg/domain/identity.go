// Package domain holds the core value types shared across layers.
package domain

import (
	"strings"

	dErrors "namereg/pkg/domain-errors"
)

// Identity is an opaque account identifier. The registry never interprets
// its contents; it only compares identities for equality.
type Identity string

// Zero is the null identity. It can never own a name, act as a caller, or
// receive a transfer.
const Zero Identity = ""

// IsZero reports whether the identity is the null identity. Whitespace-only
// values count as null.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(string(i)) == ""
}

func (i Identity) String() string {
	return string(i)
}

// ParseIdentity validates an externally supplied identity string.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	return Identity(s), nil
}
