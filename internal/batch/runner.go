// Package batch drives the per-user notification pipeline across the whole
// user population with bounded concurrency. One user's failure never aborts
// the batch; partial completion is an accepted outcome.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/platefulai/plateful-backend/internal/config"
	"github.com/platefulai/plateful-backend/internal/dispatch"
	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/store"
	"github.com/platefulai/plateful-backend/internal/strategy"
	"github.com/platefulai/plateful-backend/internal/usercontext"
	"golang.org/x/sync/errgroup"
)

type userIterator interface {
	EachUser(ctx context.Context, pageSize int, fn func(*store.UserProfile) error) error
}

type contextAnalyzer interface {
	Analyze(ctx context.Context, userID string, prefetched *store.UserProfile) (*usercontext.UserContext, error)
}

type strategySelector interface {
	Select(ctx context.Context, nt *config.NotificationTypeConfig, uc *usercontext.UserContext) (*strategy.Outcome, error)
}

type notificationDispatcher interface {
	Dispatch(ctx context.Context, userID, notificationType string, nt *config.NotificationTypeConfig, so *strategy.Outcome) (*dispatch.Outcome, error)
}

// ErrUnknownNotificationType means the requested type has no configuration.
var ErrUnknownNotificationType = errors.New("unknown notification type")

// Summary reports what one batch run did.
type Summary struct {
	NotificationType string        `json:"notificationType"`
	InvocationID     string        `json:"invocationId"`
	UsersScanned     int64         `json:"usersScanned"`
	Sent             int64         `json:"sent"`
	Skipped          int64         `json:"skipped"`
	Failed           int64         `json:"failed"`
	Duration         time.Duration `json:"duration"`
}

// Runner executes batch notification runs.
type Runner struct {
	users         userIterator
	analyzer      contextAnalyzer
	strategies    strategySelector
	dispatcher    notificationDispatcher
	notifications map[string]*config.NotificationTypeConfig

	workers     int
	pageSize    int
	userTimeout time.Duration

	logger *logger.Logger
}

// NewRunner creates a batch runner wired from the app config.
func NewRunner(users userIterator, analyzer contextAnalyzer, strategies strategySelector, d notificationDispatcher, cfg *config.Config, log *logger.Logger) *Runner {
	workers := cfg.BatchWorkerPoolSize
	if workers <= 0 {
		workers = 1
	}

	userTimeout := time.Duration(cfg.BatchUserTimeoutSeconds) * time.Second
	if userTimeout <= 0 {
		userTimeout = 2 * time.Minute
	}

	return &Runner{
		users:         users,
		analyzer:      analyzer,
		strategies:    strategies,
		dispatcher:    d,
		notifications: cfg.Notifications,
		workers:       workers,
		pageSize:      cfg.BatchPageSize,
		userTimeout:   userTimeout,
		logger:        log.WithComponent("batch"),
	}
}

// Run processes every user for one notification type. Cancelling ctx stops
// starting new users but lets in-flight pipelines finish. The returned error
// covers the population scan only; per-user failures are counted, logged,
// and swallowed.
func (r *Runner) Run(ctx context.Context, notificationType string) (*Summary, error) {
	nt, ok := r.notifications[notificationType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNotificationType, notificationType)
	}

	// The trigger surface may have stamped an invocation ID already.
	invocationID, _ := ctx.Value(logger.ContextKeyInvocationID).(string)
	if invocationID == "" {
		invocationID = logger.GenerateInvocationID()
		ctx = logger.WithInvocationID(ctx, invocationID)
	}
	ctx = logger.WithNotificationType(ctx, notificationType)
	log := r.logger.WithContext(ctx)

	summary := &Summary{NotificationType: notificationType, InvocationID: invocationID}
	if !nt.Enabled {
		log.Info("notification type disabled, skipping batch")
		return summary, nil
	}

	log.Info("batch run starting",
		slog.Int("workers", r.workers),
		slog.Int("page_size", r.pageSize))
	start := time.Now()

	var sent, skipped, failed, scanned atomic.Int64

	var g errgroup.Group
	g.SetLimit(r.workers)

	scanErr := r.users.EachUser(ctx, r.pageSize, func(profile *store.UserProfile) error {
		// Stop starting new users once the run is cancelled; workers
		// already in flight run to completion on a detached context.
		if err := ctx.Err(); err != nil {
			return err
		}

		scanned.Add(1)
		g.Go(func() error {
			switch r.processUser(ctx, notificationType, nt, profile) {
			case resultSent:
				sent.Add(1)
			case resultSkipped:
				skipped.Add(1)
			case resultFailed:
				failed.Add(1)
			}
			return nil
		})
		return nil
	})

	g.Wait()

	summary.UsersScanned = scanned.Load()
	summary.Sent = sent.Load()
	summary.Skipped = skipped.Load()
	summary.Failed = failed.Load()
	summary.Duration = time.Since(start)

	batchUsersCounter.WithLabelValues(notificationType, "sent").Add(float64(summary.Sent))
	batchUsersCounter.WithLabelValues(notificationType, "skipped").Add(float64(summary.Skipped))
	batchUsersCounter.WithLabelValues(notificationType, "failed").Add(float64(summary.Failed))
	batchDuration.WithLabelValues(notificationType).Observe(summary.Duration.Seconds())

	if scanErr != nil && errors.Is(scanErr, context.Canceled) {
		log.Info("batch run cancelled, in-flight users finished",
			slog.Int64("users_scanned", summary.UsersScanned))
		scanErr = nil
	}
	if scanErr != nil {
		log.Error("batch user scan failed partway",
			slog.String("error", scanErr.Error()),
			slog.Int64("users_scanned", summary.UsersScanned))
	}

	log.Info("batch run complete",
		slog.Int64("users_scanned", summary.UsersScanned),
		slog.Int64("sent", summary.Sent),
		slog.Int64("skipped", summary.Skipped),
		slog.Int64("failed", summary.Failed),
		slog.Duration("duration", summary.Duration))

	return summary, scanErr
}

// RunUser runs the pipeline for a single user, fetching the profile fresh.
// Used by the debug trigger endpoint.
func (r *Runner) RunUser(ctx context.Context, notificationType, userID string) (*dispatch.Outcome, error) {
	nt, ok := r.notifications[notificationType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNotificationType, notificationType)
	}

	ctx = logger.WithNotificationType(logger.WithUserID(ctx, userID), notificationType)

	uc, err := r.analyzer.Analyze(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	so, err := r.strategies.Select(ctx, nt, uc)
	if err != nil {
		return nil, err
	}

	return r.dispatcher.Dispatch(ctx, userID, notificationType, nt, so)
}

type userResult int

const (
	resultSent userResult = iota
	resultSkipped
	resultFailed
)

// processUser runs one user's pipeline in isolation: its own timeout on a
// context detached from batch cancellation, and a panic guard so a single bad
// user cannot take the run down.
func (r *Runner) processUser(ctx context.Context, notificationType string, nt *config.NotificationTypeConfig, profile *store.UserProfile) (result userResult) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.userTimeout)
	defer cancel()
	uctx = logger.WithUserID(uctx, profile.ID)
	log := r.logger.WithContext(uctx)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while processing user",
				slog.String("user_id", profile.ID),
				slog.Any("panic", rec))
			result = resultFailed
		}
	}()

	uc, err := r.analyzer.Analyze(uctx, profile.ID, profile)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return resultSkipped
		}
		log.Warn("user context analysis failed",
			slog.String("user_id", profile.ID),
			slog.String("error", err.Error()))
		return resultFailed
	}

	so, err := r.strategies.Select(uctx, nt, uc)
	if err != nil {
		if errors.Is(err, strategy.ErrNoContent) {
			return resultSkipped
		}
		log.Warn("strategy selection failed",
			slog.String("user_id", profile.ID),
			slog.String("error", err.Error()))
		return resultFailed
	}

	outcome, err := r.dispatcher.Dispatch(uctx, profile.ID, notificationType, nt, so)
	if err != nil {
		log.Warn("dispatch failed",
			slog.String("user_id", profile.ID),
			slog.String("error", err.Error()))
		return resultFailed
	}

	if !outcome.Sent {
		return resultSkipped
	}
	return resultSent
}
