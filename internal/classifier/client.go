package classifier

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

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ErrUnavailable is returned once every attempt against the endpoint has failed.
var ErrUnavailable = errors.New("classification unavailable")

// Config describes the outbound endpoint and retry policy.
type Config struct {
	Endpoint       string
	APIKey         string
	Model          string
	MaxAttempts    int
	Backoff        time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns the production retry policy without endpoint credentials.
func DefaultConfig() Config {
	return Config{
		Model:          "openai",
		MaxAttempts:    3,
		Backoff:        time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Client sends prompt/text pairs to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New builds a client. Non-positive retry settings fall back to DefaultConfig values.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaults.Backoff
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{cfg: cfg, httpClient: &http.Client{}, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify returns the endpoint's reply text. Transport errors, non-2xx responses and
// unreadable bodies are retried after a fixed backoff, up to MaxAttempts in total.
func (c *Client) Classify(ctx context.Context, systemPrompt, userText string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var (
		reply   string
		attempt int
	)
	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1), retry.NewConstant(c.cfg.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		text, err := c.attempt(ctx, body)
		if err != nil {
			c.logger.Debug("classification attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.cfg.MaxAttempts),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		reply = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, attempt, err)
	}
	return reply, nil
}

func (c *Client) attempt(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
