// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

// ClientID is the opaque per-device identity. It is never tied to a room.
type ClientID string

// NewClientID returns a fresh random identity (UUIDv4 text form).
func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

func ValidateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}
