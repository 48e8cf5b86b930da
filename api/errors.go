package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gogpu/ggmeme"
)

// Error is a failed backend call. It matches ggmeme.ErrAuth for missing or
// expired credentials and for 401 responses, ggmeme.ErrValidation for input
// rejected before sending, and ggmeme.ErrNetwork otherwise.
type Error struct {
	Op      string // e.g. "POST /memes"
	Status  int    // HTTP status, 0 if no response was received
	Message string // backend "error" field or a status-derived message
	Auth    bool
	Invalid bool
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("api: %s: %d: %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("api: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is classifies Error within the ggmeme taxonomy.
func (e *Error) Is(target error) bool {
	switch {
	case e.Auth:
		return target == ggmeme.ErrAuth
	case e.Invalid:
		return target == ggmeme.ErrValidation
	}
	return target == ggmeme.ErrNetwork
}

func authError(op, msg string) *Error {
	return &Error{Op: op, Message: msg, Auth: true}
}

func invalidError(op, msg string) *Error {
	return &Error{Op: op, Message: msg, Invalid: true}
}

// statusMessage derives a message for a response without an error field.
func statusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("Request failed: %s", text)
	}
	return fmt.Sprintf("Request failed with status %d", code)
}

// Message converts err to the single string shown to the user. It returns
// "" for a nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		switch {
		case e.Message != "":
			return e.Message
		case e.Auth:
			return "Please log in to continue."
		case e.Status == 0:
			return "Network error. Check your connection and try again."
		default:
			return statusMessage(e.Status)
		}
	}
	if errors.Is(err, ggmeme.ErrAuth) {
		return "Please log in to continue."
	}
	return err.Error()
}
