// Package slogx provides small helpers for building log/slog attributes.
package slogx

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Error returns a slog.Attr with the key "error" and the error's message
// as the value.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// SessionID returns a slog.Attr carrying a session identifier under the
// key "session_id".
func SessionID(id uuid.UUID) slog.Attr {
	return slog.String("session_id", id.String())
}

// Stringer returns a slog.Attr with the string representation of the
// given fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}
