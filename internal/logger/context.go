package logger

import (
	"context"

	"github.com/google/uuid"
)

// WithInvocationID adds a batch invocation ID to the context.
func WithInvocationID(ctx context.Context, invocationID string) context.Context {
	return context.WithValue(ctx, ContextKeyInvocationID, invocationID)
}

// WithUserID adds a user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// WithNotificationType adds a notification type to the context.
func WithNotificationType(ctx context.Context, notificationType string) context.Context {
	return context.WithValue(ctx, ContextKeyNotificationType, notificationType)
}

// WithOperation adds an operation name to the context.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, ContextKeyOperation, operation)
}

// GenerateInvocationID generates a new invocation ID.
func GenerateInvocationID() string {
	invocationID := uuid.New()
	return invocationID.String()
}
