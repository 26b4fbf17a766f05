// Package llamacpp talks to a llama.cpp server through its OpenAI-compatible
// chat completion endpoint.
package llamacpp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/menta2k/overlay-editor/pkg/client"
	"github.com/menta2k/overlay-editor/pkg/types"
)

const (
	defaultServerURL   = "http://localhost:8080"
	completionsPath    = "/v1/chat/completions"
	defaultCallTimeout = 5 * time.Minute
)

// Sampling settings per call kind. Face boxes want a near-deterministic answer.
var (
	describeSampling = sampling{Temperature: 0.7, MaxTokens: 2048}
	locateSampling   = sampling{Temperature: 0.1, MaxTokens: 512}
)

type sampling struct {
	Temperature float64
	MaxTokens   int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Message is a chat message; Content is a string or a list of parts
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type ChatCompletionResponse struct {
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// APIError is the error object llama.cpp returns on failed requests
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewClient creates a client for the server at serverURL. An empty URL means
// a local server on the default port.
func NewClient(serverURL string, opts ...ClientOption) (*Client, error) {
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("invalid llama.cpp server URL: %s", serverURL)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultCallTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SimpleQuery asks a free-form question about the image
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.complete(ctx, model, prompt, imgB64, describeSampling)
}

// AnalyzeImage asks the model for face boxes and parses its JSON answer
func (c *Client) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	text, err := c.complete(ctx, model, prompt, imgB64, locateSampling)
	if err != nil {
		return nil, err
	}
	return client.ParseAnalysisResult(text), nil
}

func (c *Client) complete(ctx context.Context, model, prompt, imgB64 string, s sampling) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
		defer cancel()
	}

	parts := []ContentPart{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: "data:" + imageMIME(imgB64) + ";base64," + imgB64},
		})
	}

	req := ChatCompletionRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: parts}},
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}

	var resp ChatCompletionResponse
	if err := c.post(ctx, completionsPath, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("llama.cpp error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in llama.cpp response")
	}

	if text := messageText(resp.Choices[0].Message.Content); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("empty response from llama.cpp server")
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	data, err := jsoniter.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llama.cpp server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := jsoniter.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// messageText returns the first text in a string or part-list content
func messageText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	return ""
}

// imageMIME sniffs the base64 payload prefix
func imageMIME(imgB64 string) string {
	switch {
	case strings.HasPrefix(imgB64, "iVBORw0KGgo"):
		return "image/png"
	case strings.HasPrefix(imgB64, "UklGR"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
