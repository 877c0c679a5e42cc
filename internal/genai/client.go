package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/platefulai/plateful-backend/internal/config"
	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/sony/gobreaker/v2"
)

const maxRetries = 3

// Client calls an OpenAI-compatible text generation endpoint. Every call has
// a timeout and goes through a circuit breaker so a dead provider degrades
// the pipeline to deterministic defaults quickly instead of stalling a batch.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[string]
	logger      *logger.Logger
}

// NewClient creates a new generative-AI client from the app config.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.AIRequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultAIRequestTimeout
	}

	componentLogger := log.WithComponent("genai")

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "genai",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerCancellation(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			componentLogger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.AIBaseURL, "/"),
		apiKey:      cfg.AIAPIKey,
		model:       cfg.AIModel,
		maxTokens:   cfg.AIMaxOutputTokens,
		temperature: cfg.AITemperature,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     breaker,
		logger:      componentLogger,
	}
}

// Generate runs one prompt through the model and returns the raw text
// response. Transient errors are retried with backoff.
func (c *Client) Generate(ctx context.Context, systemPrompt, userContent string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		text, err := c.breaker.Execute(func() (string, error) {
			return c.callAI(ctx, systemPrompt, userContent)
		})
		if err == nil {
			return text, nil
		}

		lastErr = err

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			// The breaker is shedding load; retrying immediately is pointless.
			break
		}

		if isRetryableError(err) && attempt < maxRetries {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return "", fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}
		}
		break
	}

	return "", lastErr
}

// callAI makes a single API call.
func (c *Client) callAI(ctx context.Context, systemPrompt, userContent string) (string, error) {
	payload := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userContent},
		},
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"stream":      false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call AI at %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI returned %d: %s (url: %s, model: %s)",
			resp.StatusCode, string(respBody), url, c.model)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode response: %w (body: %s)", err, string(respBody))
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response (body: %s)", string(respBody))
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// isCallerCancellation reports whether an error is the caller abandoning the
// call rather than the provider failing. A cancelled batch must not trip the
// breaker and block the next run's calls.
func isCallerCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// isRetryableError checks if an error is transient and worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	retryablePatterns := []string{
		"timeout", "timed out", "connection refused", "connection reset",
		"no such host", "EOF", "503", "502", "504", "429", "500",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
