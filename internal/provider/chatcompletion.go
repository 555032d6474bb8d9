package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var defaultChatBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

// ChatCompletionClient speaks the OpenAI-compatible chat-completions
// protocol. Streaming uses SSE framing: each frame is a "data: " prefixed
// JSON envelope, the stream ends with a "[DONE]" sentinel, and malformed or
// heartbeat frames are silently skipped.
type ChatCompletionClient struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newChatCompletion(cfg Config) *ChatCompletionClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultChatBaseURLs[strings.ToLower(cfg.Name)]
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &ChatCompletionClient{
		name:    strings.ToLower(cfg.Name),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  newHTTPClient(timeout),
	}
}

func (c *ChatCompletionClient) Name() string { return c.name }

func (c *ChatCompletionClient) SupportsStreaming() bool { return true }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type chatErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ChatCompletionClient) post(ctx context.Context, system, text string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
		Stream: stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errBody chatErrorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &errBody)
		msg := errBody.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &Error{Provider: c.name, StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}

// Generate performs a single non-streaming chat completion.
func (c *ChatCompletionClient) Generate(ctx context.Context, system, text string) (string, error) {
	resp, err := c.post(ctx, system, text, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response from API", c.name)
	}
	return parsed.Choices[0].Message.Content, nil
}

// GenerateStream performs a streaming chat completion, invoking onDelta for
// every content fragment in arrival order. The context is observed on every
// read iteration so a cancellation mid-stream stops promptly instead of
// draining the connection.
func (c *ChatCompletionClient) GenerateStream(ctx context.Context, system, text string, onDelta func(string)) (string, error) {
	resp, err := c.post(ctx, system, text, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return out.String(), err
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return out.String(), nil
		}

		var frame chatStreamFrame
		// Heartbeats and malformed frames are skipped, not fatal.
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue
		}
		if len(frame.Choices) == 0 {
			continue
		}
		if delta := frame.Choices[0].Delta.Content; delta != "" {
			out.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out.String(), ctxErr
		}
		return out.String(), fmt.Errorf("stream read failed: %w", err)
	}
	return out.String(), nil
}
