package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/MaTriXy/stagehand/api/schemas"
	"github.com/MaTriXy/stagehand/internal/config"
)

// ChatClient talks to any OpenAI-compatible chat completions endpoint. It
// covers both the hosted OpenAI API and local runtimes such as Ollama, which
// expose the same wire format.
type ChatClient struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ schemas.LLMClient = (*ChatClient)(nil)

// -- Chat Completions Wire Structures --

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequestPayload struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponsePayload struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewChatClient builds a client for the given endpoint. The endpoint is the
// full chat completions URL; the factory resolves provider defaults.
func NewChatClient(cfg config.OracleConfig, endpoint string, logger *zap.Logger) *ChatClient {
	return &ChatClient{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout:   cfg.APITimeout,
			Transport: newDecompressionTransport(nil),
		},
		limiter: newLimiter(cfg.RequestsPerMinute),
		logger:  logger.Named("oracle.chat"),
	}
}

// newLimiter converts a requests-per-minute budget into a rate limiter.
// Zero means unlimited.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
}

// Generate sends one completion request. A single attempt: resolution
// callers treat the model as deterministic-per-input, so a transport or
// contract failure propagates instead of being retried into ambiguity.
func (c *ChatClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	payload := chatRequestPayload{
		Model:       c.model,
		Temperature: req.Options.Temperature,
		MaxTokens:   req.Options.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if req.Options.ForceJSONFormat {
		payload.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("completion endpoint returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("response", truncateForLog(string(respBody), 512)),
		)
		return "", fmt.Errorf("completion endpoint returned status %d: %s", resp.StatusCode, truncateForLog(string(respBody), 512))
	}

	var decoded chatResponsePayload
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("completion endpoint error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion response contains no choices")
	}

	content := decoded.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("completion is empty (finish reason %q)", decoded.Choices[0].FinishReason)
	}

	c.logger.Debug("completion received",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", decoded.Usage.PromptTokens),
		zap.Int("completion_tokens", decoded.Usage.CompletionTokens),
		zap.Int("total_tokens", decoded.Usage.TotalTokens),
	)
	return content, nil
}

// Close releases idle connections held by the HTTP client.
func (c *ChatClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
