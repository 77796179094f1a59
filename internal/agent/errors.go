package agent

import (
	"errors"
	"fmt"
	"net/http"
)

// TimeoutError reports a network round trip that exceeded its bound.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string { return "agent: " + e.Op + " timed out" }

// TransportError reports a fetch-level network failure before any HTTP
// status was produced.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("agent: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// APIError reports a failed exchange with structured detail. The backend
// attaches a spoken-friendly fallback text to most errors, and fallback
// responses may carry a playable audio reference that should be surfaced
// in place of a text-only error.
type APIError struct {
	StatusCode int
	Detail     string
	Fallback   string
	AudioURL   string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("agent: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("agent: status %d", e.StatusCode)
}

// UserMessage classifies a failure into the message shown (and optionally
// read aloud) to the user.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return "Too many requests right now. Please wait a moment and try again."
		case apiErr.StatusCode == http.StatusRequestEntityTooLarge:
			return "That recording is too large to process. Please try a shorter one."
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return "The server took too long to respond. Please try again."
		case apiErr.StatusCode >= 500:
			return "The voice service hit a problem. Please try again in a moment."
		}
		if apiErr.Fallback != "" {
			return apiErr.Fallback
		}
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return "The request failed. Please try again."
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return "The request timed out. Please check your connection and try again."
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return "Could not reach the voice service. Please check your connection."
	}
	return "Something went wrong. Please try again."
}
