// Package provider abstracts heterogeneous language-model backends behind
// one generation interface with streaming and non-streaming calls. The
// pipeline never branches on backend identity; the differences between a
// native delta event stream, an SSE-framed protocol, and a plain
// request/response service are absorbed here.
package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Config identifies a backend and carries its opaque caller-supplied
// settings. Credentials pass straight through; they are never persisted or
// logged.
type Config struct {
	Name            string        `mapstructure:"name" json:"name"`
	Model           string        `mapstructure:"model" json:"model"`
	APIKey          string        `mapstructure:"api_key" json:"api_key"`
	BaseURL         string        `mapstructure:"base_url" json:"base_url"`
	CredentialsFile string        `mapstructure:"credentials" json:"credentials"`
	SourceLang      string        `mapstructure:"source_lang" json:"source_lang"`
	TargetLang      string        `mapstructure:"target_lang" json:"target_lang"`
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Provider is a language-model backend capable of turning a system
// instruction plus user text into generated output.
//
// GenerateStream delivers output incrementally through onDelta and returns
// the full accumulated text. Backends that cannot stream degrade to a single
// call of onDelta with the complete output. Both operations observe ctx at
// every suspension point.
type Provider interface {
	Name() string
	SupportsStreaming() bool
	Generate(ctx context.Context, system, text string) (string, error)
	GenerateStream(ctx context.Context, system, text string, onDelta func(string)) (string, error)
}

// Error is a classified upstream failure carrying the HTTP status surfaced
// by the backend, so callers can map it without string-matching provider
// output.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Temporary reports whether the upstream status indicates a transient
// condition worth retrying.
func (e *Error) Temporary() bool {
	return e.StatusCode/100 == 5 || e.StatusCode == 429 || e.StatusCode == 408
}

// newHTTPClient builds a client with connection-level timeouts only. The
// header timeout caps connection setup and the wait for response headers
// (which for a non-streaming call is the whole generation); the streamed body
// read is unbounded, since a single long generation may legitimately run for
// many minutes. Stopping a stream early is the request context's job.
func newHTTPClient(headerTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: headerTimeout,
		},
	}
}

// New constructs the provider selected by cfg.Name. The OpenAI-compatible
// chat-completions protocol covers openai, deepseek and openrouter; they
// differ only in default base URL.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Name) {
	case "openai", "deepseek", "openrouter":
		return newChatCompletion(cfg), nil
	case "ollama":
		return newOllama(cfg), nil
	case "google":
		return newGoogleMT(cfg), nil
	case "":
		return nil, fmt.Errorf("no provider configured")
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Name)
	}
}
