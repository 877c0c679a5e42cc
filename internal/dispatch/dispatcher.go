// Package dispatch resolves final notification content and delivers it: merge
// default template, experiment variant, and AI draft; substitute placeholders;
// build the deep link; send one multicast; classify per-token failures; clean
// up dead tokens; write the audit record.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/platefulai/plateful-backend/internal/config"
	"github.com/platefulai/plateful-backend/internal/content"
	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/push"
	"github.com/platefulai/plateful-backend/internal/store"
	"github.com/platefulai/plateful-backend/internal/strategy"
)

// homeDeepLink is the last-resort link. Every notification must be tappable.
const homeDeepLink = "plateful://home"

// Audit statuses.
const (
	StatusAllFailed        = "all_failed"
	StatusPartialSuccess   = "partial_success"
	StatusSentSuccessfully = "sent_successfully"
)

// Outcome summarizes one dispatch. A zero Outcome means the user was skipped
// (gated, no tokens, or missing) — an expected terminal state, not an error.
type Outcome struct {
	TokensAttempted int
	TokensSucceeded int
	TokensFailed    int
	InvalidTokens   []string
	Sent            bool
}

type userStore interface {
	GetUserProfile(ctx context.Context, userID string) (*store.UserProfile, error)
	GetUserTokens(ctx context.Context, userID string) ([]string, error)
	RemoveUserTokens(ctx context.Context, userID string, tokens []string) error
	SaveAuditRecord(ctx context.Context, userID string, record *store.AuditRecord) error
}

type variantSelector interface {
	SelectVariant(ctx context.Context, notificationType string) (*store.Variant, string)
}

type pushSender interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]push.TokenResult, error)
}

// Dispatcher sends one resolved notification per call.
type Dispatcher struct {
	store    userStore
	variants variantSelector
	sender   pushSender
	enabled  bool
	logger   *logger.Logger
}

// NewDispatcher creates a dispatcher. enabled is the global push kill switch;
// when false every dispatch is a logged no-op.
func NewDispatcher(s userStore, variants variantSelector, sender pushSender, enabled bool, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:    s,
		variants: variants,
		sender:   sender,
		enabled:  enabled,
		logger:   log.WithComponent("dispatch"),
	}
}

// Dispatch runs the full delivery sequence for one user and notification
// type. Gated users, missing users, and empty token sets all return an empty
// outcome with a nil error.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, notificationType string, nt *config.NotificationTypeConfig, so *strategy.Outcome) (*Outcome, error) {
	log := d.logger.WithContext(ctx)

	if !d.enabled || !nt.Enabled {
		log.Debug("push disabled, skipping dispatch",
			slog.String("user_id", userID),
			slog.String("notification_type", notificationType))
		dispatchCounter.WithLabelValues(notificationType, "skipped").Inc()
		return &Outcome{}, nil
	}

	profile, err := d.store.GetUserProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Info("user vanished before dispatch, skipping",
				slog.String("user_id", userID))
			dispatchCounter.WithLabelValues(notificationType, "skipped").Inc()
			return &Outcome{}, nil
		}
		return nil, err
	}

	if optedOut(profile, notificationType) {
		log.Debug("user opted out, skipping dispatch",
			slog.String("user_id", userID),
			slog.String("notification_type", notificationType))
		dispatchCounter.WithLabelValues(notificationType, "skipped").Inc()
		return &Outcome{}, nil
	}

	// Tokens are re-read immediately before send so we never push to a
	// device list the gating read already made stale.
	tokens, err := d.store.GetUserTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		log.Debug("user has no device tokens, skipping dispatch",
			slog.String("user_id", userID))
		dispatchCounter.WithLabelValues(notificationType, "skipped").Inc()
		return &Outcome{}, nil
	}

	variant, experimentID := d.variants.SelectVariant(ctx, notificationType)

	title, body, emoji := resolveContent(nt, variant, so.Draft)
	title = content.RenderTemplate(title, so.Data)
	body = content.RenderTemplate(body, so.Data)
	if emoji != "" {
		title = emoji + " " + title
	}

	deepLink := resolveDeepLink(nt, variant, so)

	data := map[string]string{
		"deepLink":         deepLink,
		"notificationType": notificationType,
		"strategy":         string(so.Strategy),
	}

	results, err := d.sender.SendMulticast(ctx, tokens, title, body, data)
	if err != nil {
		dispatchCounter.WithLabelValues(notificationType, "send_error").Inc()
		return nil, err
	}

	outcome := &Outcome{TokensAttempted: len(tokens)}
	for _, r := range results {
		if r.Success {
			outcome.TokensSucceeded++
			continue
		}
		outcome.TokensFailed++
		if removableErrorCode(r.ErrorCode) {
			outcome.InvalidTokens = append(outcome.InvalidTokens, r.Token)
		} else {
			log.Warn("transient token failure, keeping token",
				slog.String("user_id", userID),
				slog.String("error_code", r.ErrorCode),
				slog.String("error", r.ErrorMessage))
		}
	}
	outcome.Sent = outcome.TokensSucceeded > 0

	if len(outcome.InvalidTokens) > 0 {
		// Best effort: a cleanup failure does not undo the send.
		if err := d.store.RemoveUserTokens(ctx, userID, outcome.InvalidTokens); err != nil {
			log.Warn("token cleanup failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
		} else {
			tokensRemovedCounter.Add(float64(len(outcome.InvalidTokens)))
		}
	}

	status := outcomeStatus(outcome)
	record := &store.AuditRecord{
		NotificationType: notificationType,
		Strategy:         string(so.Strategy),
		ExperimentID:     experimentID,
		Title:            title,
		Body:             body,
		DeepLink:         deepLink,
		TokensAttempted:  outcome.TokensAttempted,
		SuccessCount:     outcome.TokensSucceeded,
		FailureCount:     outcome.TokensFailed,
		RemovedTokens:    outcome.InvalidTokens,
		Status:           status,
		SentAt:           time.Now().UTC(),
	}
	if variant != nil {
		record.VariantID = variant.VariantID
	}
	if err := d.store.SaveAuditRecord(ctx, userID, record); err != nil {
		log.Warn("audit record write failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}

	dispatchCounter.WithLabelValues(notificationType, status).Inc()
	log.Info("dispatch complete",
		slog.String("user_id", userID),
		slog.String("notification_type", notificationType),
		slog.String("strategy", string(so.Strategy)),
		slog.String("status", status),
		slog.Int("tokens_attempted", outcome.TokensAttempted),
		slog.Int("tokens_succeeded", outcome.TokensSucceeded))

	return outcome, nil
}

// optedOut applies the user-level gating: a nil global flag means enabled, and
// only an explicit false per-type flag means opted out.
func optedOut(profile *store.UserProfile, notificationType string) bool {
	if profile.NotificationsEnabled != nil && !*profile.NotificationsEnabled {
		return true
	}
	if v, ok := profile.NotificationOptOuts[notificationType]; ok && !v {
		return true
	}
	return false
}

// resolveContent overlays content sources in increasing priority: config
// default, experiment variant, AI draft. Each field is overridden only when
// the higher-priority source actually supplies it.
func resolveContent(nt *config.NotificationTypeConfig, variant *store.Variant, draft *content.Draft) (title, body, emoji string) {
	title, body, emoji = nt.DefaultTitle, nt.DefaultBody, nt.DefaultEmoji

	if variant != nil {
		if variant.Title != "" {
			title = variant.Title
		}
		if variant.Body != "" {
			body = variant.Body
		}
		if variant.Emoji != "" {
			emoji = variant.Emoji
		}
	}

	if draft != nil {
		if draft.Title != "" {
			title = draft.Title
		}
		if draft.Body != "" {
			body = draft.Body
		}
		if draft.Emoji != "" {
			emoji = draft.Emoji
		}
	}

	return title, body, emoji
}

// resolveDeepLink walks the link priority chain. It never returns an empty
// string: the home screen is the floor.
func resolveDeepLink(nt *config.NotificationTypeConfig, variant *store.Variant, so *strategy.Outcome) string {
	if so.DeepLink != "" {
		return so.DeepLink
	}
	if variant != nil && variant.DeepLink != "" {
		return variant.DeepLink
	}
	if so.Draft != nil && so.Draft.DeepLink != "" {
		return so.Draft.DeepLink
	}
	if nt.DeepLinkBase != "" {
		if so.RecipeID != "" {
			return joinURL(nt.DeepLinkBase, so.RecipeID)
		}
		return nt.DeepLinkBase
	}
	return homeDeepLink
}

// joinURL joins base and path with exactly one slash between them.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// removableErrorCode reports whether a per-token error code marks the token
// as permanently dead.
func removableErrorCode(code string) bool {
	switch code {
	case push.ErrCodeInvalidToken, push.ErrCodeUnregisteredToken, push.ErrCodeMismatchedCred:
		return true
	default:
		return false
	}
}

// outcomeStatus maps token counts to the coarse audit status.
func outcomeStatus(o *Outcome) string {
	switch {
	case o.TokensSucceeded == 0:
		return StatusAllFailed
	case o.TokensFailed > 0:
		return StatusPartialSuccess
	default:
		return StatusSentSuccessfully
	}
}
