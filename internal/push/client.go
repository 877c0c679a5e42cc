// Package push adapts Firebase Cloud Messaging to the dispatcher's needs:
// one multicast call, per-token results with a stable error-code vocabulary.
package push

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/platefulai/plateful-backend/internal/logger"
)

// Stable per-token error codes. The dispatcher treats the first three as
// permanent and schedules token cleanup; everything else is transient.
const (
	ErrCodeInvalidToken      = "invalid-registration-token"
	ErrCodeUnregisteredToken = "registration-token-not-registered"
	ErrCodeMismatchedCred    = "mismatched-credential"
)

// TokenResult is the outcome of sending to a single device token.
type TokenResult struct {
	Token        string
	Success      bool
	ErrorCode    string
	ErrorMessage string
}

// Client sends multicast push notifications via FCM.
type Client struct {
	messagingClient *messaging.Client
	logger          *logger.Logger
}

// NewClient creates a new push client.
func NewClient(messagingClient *messaging.Client, log *logger.Logger) *Client {
	return &Client{
		messagingClient: messagingClient,
		logger:          log.WithComponent("push"),
	}
}

// SendMulticast sends one notification to all given tokens and reports a
// per-token result. The returned slice is index-aligned with tokens.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]TokenResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	batch, err := c.messagingClient.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("multicast send failed: %w", err)
	}

	results := make([]TokenResult, len(tokens))
	for i, resp := range batch.Responses {
		result := TokenResult{Token: tokens[i], Success: resp.Success}
		if resp.Error != nil {
			result.ErrorCode = classifyError(resp.Error)
			result.ErrorMessage = resp.Error.Error()
		}
		results[i] = result
	}

	c.logger.Debug("multicast send complete",
		slog.Int("tokens", len(tokens)),
		slog.Int("success", batch.SuccessCount),
		slog.Int("failure", batch.FailureCount))

	return results, nil
}

// classifyError maps an FCM send error to the stable error-code vocabulary.
func classifyError(err error) string {
	switch {
	case messaging.IsUnregistered(err):
		return ErrCodeUnregisteredToken
	case messaging.IsSenderIDMismatch(err):
		return ErrCodeMismatchedCred
	case errorutils.IsInvalidArgument(err):
		return ErrCodeInvalidToken
	default:
		return ""
	}
}
