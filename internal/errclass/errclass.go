// Package errclass maps raw transport and provider failures into the closed
// taxonomy the rest of the application reasons about. Callers switch on the
// class, never on backend-specific error strings, and user-initiated
// cancellation is kept distinct from every failure class.
package errclass

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/valpere/kazkar/internal/provider"
)

// Class is one classified failure category.
type Class string

const (
	InvalidCredential Class = "invalid_credential"
	QuotaExceeded     Class = "quota_exceeded"
	ServerOverloaded  Class = "server_overloaded"
	UserAborted       Class = "user_aborted"
	InputTooLarge     Class = "input_too_large"
	Unknown           Class = "unknown"
)

// tooLargeMarkers are message fragments backends use to report that the
// request exceeded the model's context window.
var tooLargeMarkers = []string{
	"context length",
	"context window",
	"maximum context",
	"token limit",
	"too large",
	"too long",
}

// Classify maps err to its Class. Cancellation wins over every other
// category, so an aborted call is never misreported as a backend failure.
// Only context.Canceled counts as cancellation: a deadline error also comes
// out of http.Client timeouts with no user involvement, so it classifies as
// a transient backend condition instead.
func Classify(err error) Class {
	if err == nil {
		return Unknown
	}
	if errors.Is(err, context.Canceled) {
		return UserAborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ServerOverloaded
	}

	if status, msg, ok := upstreamStatus(err); ok {
		switch {
		case status == 401 || status == 403:
			return InvalidCredential
		case status == 429:
			return QuotaExceeded
		case status == 413:
			return InputTooLarge
		case status/100 == 5 || status == 408:
			return ServerOverloaded
		case status == 400 && mentionsTooLarge(msg):
			return InputTooLarge
		}
		return Unknown
	}

	if mentionsTooLarge(err.Error()) {
		return InputTooLarge
	}
	return Unknown
}

// Retryable reports whether err is worth retrying. Rate limits, 5xx
// responses and plain transport failures are transient; credential and
// request-size failures repeat identically on every attempt, and an aborted
// call must never be retried.
func Retryable(err error) bool {
	switch Classify(err) {
	case QuotaExceeded, ServerOverloaded:
		return true
	case UserAborted, InvalidCredential, InputTooLarge:
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// Describe renders a class as a short user-facing explanation.
func Describe(c Class) string {
	switch c {
	case InvalidCredential:
		return "the provider rejected the configured credential"
	case QuotaExceeded:
		return "the provider's rate or usage quota was exceeded"
	case ServerOverloaded:
		return "the provider is overloaded or temporarily unavailable"
	case UserAborted:
		return "the operation was cancelled"
	case InputTooLarge:
		return "the request exceeds the model's input size limit"
	default:
		return "an unexpected error occurred"
	}
}

func upstreamStatus(err error) (int, string, bool) {
	var provErr *provider.Error
	if errors.As(err, &provErr) {
		return provErr.StatusCode, provErr.Message, true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	return 0, "", false
}

func mentionsTooLarge(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range tooLargeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
