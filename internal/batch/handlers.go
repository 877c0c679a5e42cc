package batch

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/store"
	"github.com/platefulai/plateful-backend/internal/strategy"
)

// Handler exposes the internal trigger surface: one endpoint per batch run
// for the external scheduler, plus a synchronous per-user debug endpoint.
type Handler struct {
	runner     *Runner
	background *Background
	authToken  string
	logger     *logger.Logger
}

// NewHandler creates the trigger handler. Triggered runs execute on the
// background tracker so shutdown can drain them. An empty authToken rejects
// every request rather than leaving the endpoints open.
func NewHandler(runner *Runner, background *Background, authToken string, log *logger.Logger) *Handler {
	return &Handler{
		runner:     runner,
		background: background,
		authToken:  authToken,
		logger:     log.WithComponent("jobs"),
	}
}

// RegisterRoutes mounts the trigger endpoints.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	jobs := r.Group("/internal/jobs", h.requireAuth)
	jobs.POST("/notifications/:type", h.triggerBatch)
	jobs.POST("/notifications/:type/users/:userId", h.triggerUser)
}

func (h *Handler) requireAuth(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if h.authToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.authToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

// triggerBatch starts a batch run in the background and returns immediately.
// The scheduler only needs an ack and the invocation ID for log correlation.
func (h *Handler) triggerBatch(c *gin.Context) {
	notificationType := c.Param("type")
	if _, ok := h.runner.notifications[notificationType]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown notification type"})
		return
	}

	// The logging middleware stamps every request with an invocation ID;
	// reuse it so the trigger call and the run it starts correlate.
	invocationID, _ := c.Request.Context().Value(logger.ContextKeyInvocationID).(string)
	if invocationID == "" {
		invocationID = logger.GenerateInvocationID()
	}

	// Detached from the request context so the run survives the response,
	// but tracked so shutdown stops new users and waits for in-flight ones.
	h.background.Go(func(ctx context.Context) {
		ctx = logger.WithInvocationID(ctx, invocationID)
		if _, err := h.runner.Run(ctx, notificationType); err != nil {
			h.logger.WithContext(ctx).Error("batch run failed", "error", err.Error())
		}
	})

	c.JSON(http.StatusAccepted, gin.H{
		"status":           "started",
		"notificationType": notificationType,
		"invocationId":     invocationID,
	})
}

// triggerUser runs the pipeline synchronously for one user.
func (h *Handler) triggerUser(c *gin.Context) {
	notificationType := c.Param("type")
	userID := c.Param("userId")

	outcome, err := h.runner.RunUser(c.Request.Context(), notificationType, userID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	case errors.Is(err, strategy.ErrNoContent):
		c.JSON(http.StatusOK, gin.H{"status": "skipped", "reason": "no strategy produced content"})
		return
	case errors.Is(err, ErrUnknownNotificationType):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	default:
		h.logger.WithContext(c.Request.Context()).Error("single-user run failed",
			"user_id", userID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pipeline failed"})
		return
	}

	status := "skipped"
	if outcome.Sent {
		status = "sent"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          status,
		"tokensAttempted": outcome.TokensAttempted,
		"tokensSucceeded": outcome.TokensSucceeded,
		"tokensFailed":    outcome.TokensFailed,
	})
}
