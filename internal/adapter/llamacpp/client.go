// Package llamacpp adapts a locally hosted llama.cpp server (its native
// /completion and /health endpoints) to the LLM port.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucasmend/askdb/internal/core/domain"
	"github.com/lucasmend/askdb/internal/core/port"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 500
)

// defaultStop cuts generation before the model starts hallucinating the next
// conversation turn.
var defaultStop = []string{"\n\n", "Human:", "Assistant:"}

// Options tunes generation. Zero values fall back to the defaults above.
type Options struct {
	Temperature float64
	MaxTokens   int
	Stop        []string
	Timeout     time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	opts       Options
}

// NewClient builds a client for the llama.cpp server at baseURL
// (e.g. "http://localhost:8080", no trailing path).
func NewClient(baseURL string, opts Options) *Client {
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Stop == nil {
		opts.Stop = defaultStop
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
	}
}

// completionRequest is llama.cpp's native /completion body. n_predict is the
// server's name for the max-token bound.
type completionRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	NPredict    int      `json:"n_predict"`
	Stop        []string `json:"stop"`
}

type completionResponse struct {
	Content string `json:"content"`
}

// Generate renders the conversation into llama.cpp's prompt format and
// requests a completion.
func (c *Client) Generate(ctx context.Context, system string, messages []port.Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Prompt:      renderPrompt(system, messages),
		Temperature: c.opts.Temperature,
		NPredict:    c.opts.MaxTokens,
		Stop:        c.opts.Stop,
	})
	if err != nil {
		return "", fmt.Errorf("encoding completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}

	return strings.TrimSpace(cr.Content), nil
}

// Healthy probes /health. Anything but a 200 means the server is not ready to
// serve completions.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", domain.ErrLLMUnavailable, resp.StatusCode)
	}
	return nil
}
