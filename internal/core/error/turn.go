package errx

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrToolRoundLimit is returned when a turn keeps requesting tools past the configured limit.
	ErrToolRoundLimit = errors.New("tool round limit reached")
	// ErrEmptyConversation is returned when a turn starts without any user message.
	ErrEmptyConversation = errors.New("conversation has no user message")
)

// UnknownToolError reports a tool call whose name is absent from the registry.
type UnknownToolError struct {
	Name   string
	CallID string
}

func (e *UnknownToolError) Error() string {
	if e.CallID == "" {
		return fmt.Sprintf("unknown tool %q", e.Name)
	}
	return fmt.Sprintf("unknown tool %q (call %s)", e.Name, e.CallID)
}

// ModelUnavailableError reports that the chat model could not produce a response.
type ModelUnavailableError struct {
	Err error
}

func (e *ModelUnavailableError) Error() string {
	if e.Err == nil {
		return "chat model unavailable"
	}
	return fmt.Sprintf("chat model unavailable: %v", e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// FromTurnError maps errors surfaced by a dispatch turn to AppError.
func FromTurnError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var unknown *UnknownToolError
	var unavailable *ModelUnavailableError
	switch {
	case errors.As(err, &unknown):
		return New(err, http.StatusBadGateway, UnknownToolMessage)
	case errors.As(err, &unavailable):
		return New(err, http.StatusServiceUnavailable, ModelUnavailableMessage)
	case errors.Is(err, ErrToolRoundLimit):
		return New(err, http.StatusInternalServerError, ToolRoundLimitMessage)
	case errors.Is(err, ErrEmptyConversation):
		return BadRequest(err)
	default:
		return New(err, http.StatusInternalServerError, SystemErrorMessage)
	}
}
