package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaClient talks to a local Ollama server. Unlike the SSE-framed chat
// protocol, Ollama streams bare JSON objects back to back, each carrying a
// text delta and a done flag.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

func newOllama(cfg Config) *OllamaClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   cfg.Model,
		client:  newHTTPClient(timeout),
	}
}

func (c *OllamaClient) Name() string { return "ollama" }

func (c *OllamaClient) SupportsStreaming() bool { return true }

type ollamaRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaEvent struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *OllamaClient) post(ctx context.Context, system, text string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  c.model,
		System: system,
		Prompt: text,
		Stream: stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{Provider: "ollama", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return resp, nil
}

// Generate performs a single non-streaming generation.
func (c *OllamaClient) Generate(ctx context.Context, system, text string) (string, error) {
	resp, err := c.post(ctx, system, text, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var ev ollamaEvent
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return ev.Response, nil
}

// GenerateStream decodes the native delta event stream, invoking onDelta per
// fragment and observing ctx on every iteration.
func (c *OllamaClient) GenerateStream(ctx context.Context, system, text string, onDelta func(string)) (string, error) {
	resp, err := c.post(ctx, system, text, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out strings.Builder
	dec := json.NewDecoder(resp.Body)
	for {
		if err := ctx.Err(); err != nil {
			return out.String(), err
		}

		var ev ollamaEvent
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return out.String(), nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out.String(), ctxErr
			}
			return out.String(), fmt.Errorf("stream decode failed: %w", err)
		}
		if ev.Response != "" {
			out.WriteString(ev.Response)
			if onDelta != nil {
				onDelta(ev.Response)
			}
		}
		if ev.Done {
			return out.String(), nil
		}
	}
}
