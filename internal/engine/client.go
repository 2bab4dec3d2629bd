package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/huangkk10/ai-platform-rag/internal/log"
)

// DefaultTimeout bounds a single chat call. Answer generation over a large
// knowledge base is slow, so this is deliberately generous.
const DefaultTimeout = 75 * time.Second

// RetryConfig controls retry behavior for engine calls.
type RetryConfig struct {
	MaxRetries int           // retries after the initial attempt (default: 3)
	BaseDelay  time.Duration // first backoff delay (default: 1s)
	Multiplier float64       // backoff growth factor (default: 2)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   RetryConfig

	// RatePerSecond limits outbound request rate. Zero disables limiting.
	RatePerSecond float64

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	Logger log.Logger
}

// StatusError is returned when the engine answers with a non-retryable
// HTTP status. Callers distinguish it from transport errors, which mean
// the engine may not have received the request at all.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("answer engine returned status %d: %s", e.StatusCode, e.Body)
}

// retryableStatuses are engine responses worth retrying. 400 is included
// because the engine emits it transiently while its own upstream model is
// warming up.
var retryableStatuses = map[int]bool{
	http.StatusBadRequest:         true,
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// Client calls a blocking chat completion endpoint. It satisfies ChatEngine.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   RetryConfig
	limiter *rate.Limiter
	breaker *CircuitBreaker
	logger  log.Logger
}

// NewClient creates an engine client, applying defaults for zero config
// values.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("engine: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.Multiplier <= 0 {
		cfg.Retry.Multiplier = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		retry:   cfg.Retry,
		limiter: limiter,
		breaker: NewCircuitBreaker(CircuitBreakerConfig{}),
		logger:  cfg.Logger,
	}, nil
}

// wireRequest is the engine's chat-messages request body.
type wireRequest struct {
	Query          string            `json:"query"`
	User           string            `json:"user"`
	ConversationID string            `json:"conversation_id,omitempty"`
	ResponseMode   string            `json:"response_mode"`
	Inputs         map[string]string `json:"inputs"`
}

// wireResponse is the engine's chat-messages response body.
type wireResponse struct {
	Answer         string `json:"answer"`
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	Metadata       struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
		RetrieverResources []struct {
			DocumentID   string  `json:"document_id"`
			DocumentName string  `json:"document_name"`
			Score        float64 `json:"score"`
		} `json:"retriever_resources"`
	} `json:"metadata"`
}

// Chat sends a blocking chat request, retrying transient failures with
// exponential backoff. Passing the same ConversationID threads follow-up
// queries into one engine-side conversation.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	body := wireRequest{
		Query:          req.Query,
		User:           req.User,
		ConversationID: req.ConversationID,
		ResponseMode:   "blocking",
		Inputs:         map[string]string{},
	}
	if req.Breadth != "" {
		body.Inputs["retrieval_mode"] = string(req.Breadth)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	delay := c.retry.BaseDelay

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying engine call",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.retry.Multiplier)
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.send(ctx, payload)
		if err == nil {
			c.breaker.Success()
			return resp, nil
		}
		lastErr = err

		if !retryable(err) {
			c.breaker.Failure()
			return nil, err
		}
	}

	c.breaker.Failure()
	return nil, fmt.Errorf("engine call failed after %d attempts: %w",
		c.retry.MaxRetries+1, lastErr)
}

// send performs one HTTP round trip.
func (c *Client) send(ctx context.Context, payload []byte) (*ChatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat-messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build engine request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read engine response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: httpResp.StatusCode,
			Body:       truncate(string(raw), 200),
		}
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}

	resp := &ChatResponse{
		Answer:         wire.Answer,
		MessageID:      wire.MessageID,
		ConversationID: wire.ConversationID,
		Usage: Usage{
			PromptTokens:     wire.Metadata.Usage.PromptTokens,
			CompletionTokens: wire.Metadata.Usage.CompletionTokens,
			TotalTokens:      wire.Metadata.Usage.TotalTokens,
		},
	}
	for _, r := range wire.Metadata.RetrieverResources {
		resp.Citations = append(resp.Citations, Citation{
			DocumentID:   r.DocumentID,
			DocumentName: r.DocumentName,
			Score:        r.Score,
		})
	}
	return resp, nil
}

// retryable reports whether an error is worth another attempt: transport
// failures and a small set of transient statuses.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatuses[statusErr.StatusCode]
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Anything else from http.Client.Do is a transport failure.
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
