// Package strategy orchestrates suggestion selection: a weighted initial
// choice over the strategy kinds, then a bounded, non-cyclic fallback chain
// when the chosen strategy yields no usable content.
package strategy

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/url"
	"strconv"

	"github.com/platefulai/plateful-backend/internal/candidates"
	"github.com/platefulai/plateful-backend/internal/config"
	"github.com/platefulai/plateful-backend/internal/content"
	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/usercontext"
	"github.com/platefulai/plateful-backend/internal/weighted"
)

// Kind identifies a suggestion strategy. The value is the audit tag threaded
// through dispatch.
type Kind string

const (
	KindExistingRecipe Kind = "existing_recipe"
	KindNewIdea        Kind = "new_idea"
	KindRemix          Kind = "remix"
	KindSurprise       Kind = "surprise"
)

// ErrNoContent means every attempted strategy failed to produce content; the
// user gets no notification this cycle. Expected outcome, not a fault.
var ErrNoContent = errors.New("no strategy produced content")

// maxFallbackHops bounds the chain after the initial attempt.
const maxFallbackHops = 2

// fallbackEdges defines the only permitted transitions. NewIdea and Surprise
// are terminal.
var fallbackEdges = map[Kind]Kind{
	KindExistingRecipe: KindNewIdea,
	KindRemix:          KindNewIdea,
}

// Outcome is what the winning strategy hands to the dispatcher.
type Outcome struct {
	// Strategy is the kind that ultimately produced content.
	Strategy Kind

	// Draft is the structured AI draft from the two-stage existing-recipe
	// flow. Nil when generation failed or the strategy has no draft stage;
	// the dispatcher then renders the default template instead.
	Draft *content.Draft

	// Data feeds placeholder substitution in title and body.
	Data map[string]string

	// RecipeID, when set, lets the dispatcher build a recipe deep link.
	RecipeID string

	// DeepLink is an explicit link override, e.g. the chat-prompt link
	// carrying a generated idea. Highest priority in link resolution.
	DeepLink string
}

type candidateFinder interface {
	FindExistingRecipe(ctx context.Context, uc *usercontext.UserContext, excluded map[string]bool) (*candidates.RecipeCandidate, error)
	PersonalRecipe(ctx context.Context, uc *usercontext.UserContext, excluded map[string]bool) (*candidates.RecipeCandidate, error)
}

type contentGenerator interface {
	Concept(ctx context.Context, nt *config.NotificationTypeConfig, stage string, uc *usercontext.UserContext, extra map[string]string) (string, error)
	RecipeNotification(ctx context.Context, nt *config.NotificationTypeConfig, uc *usercontext.UserContext, candidate *candidates.RecipeCandidate) (*content.Draft, error)
}

// Selector runs the strategy state machine for one user. Pure orchestration:
// no side effects beyond the finder and generator calls.
type Selector struct {
	finder    candidateFinder
	generator contentGenerator
	weights   config.StrategyConfig
	intn      func(int) int
	logger    *logger.Logger
}

// NewSelector creates a strategy selector.
func NewSelector(finder candidateFinder, generator contentGenerator, weights config.StrategyConfig, log *logger.Logger) *Selector {
	return &Selector{
		finder:    finder,
		generator: generator,
		weights:   weights,
		intn:      rand.Intn,
		logger:    log.WithComponent("strategy"),
	}
}

// Select picks an initial strategy by weighted random choice and walks the
// fallback chain until one produces content. The chain never revisits a
// strategy and is bounded to two hops; when it runs out, ErrNoContent.
func (s *Selector) Select(ctx context.Context, nt *config.NotificationTypeConfig, uc *usercontext.UserContext) (*Outcome, error) {
	log := s.logger.WithContext(ctx)

	current := s.initialKind(uc)
	attempted := make(map[Kind]bool)

	for hop := 0; ; hop++ {
		attempted[current] = true

		outcome, err := s.attempt(ctx, current, nt, uc)
		if err == nil {
			if hop > 0 {
				log.Info("strategy fallback succeeded",
					slog.String("user_id", uc.UserID),
					slog.String("strategy", string(outcome.Strategy)),
					slog.Int("hops", hop))
			}
			return outcome, nil
		}

		next, ok := fallbackEdges[current]
		if !ok || attempted[next] || hop >= maxFallbackHops {
			log.Info("all strategies exhausted, skipping user this cycle",
				slog.String("user_id", uc.UserID),
				slog.String("last_strategy", string(current)),
				slog.String("error", err.Error()))
			return nil, ErrNoContent
		}

		log.Debug("strategy yielded no content, falling back",
			slog.String("user_id", uc.UserID),
			slog.String("from", string(current)),
			slog.String("to", string(next)))
		current = next
	}
}

// initialKind runs the weighted initial selection. The third slot is Remix
// only when the user has a personal recipe to remix, Surprise otherwise.
func (s *Selector) initialKind(uc *usercontext.UserContext) Kind {
	third := KindSurprise
	if uc.PersonalRecipeCount >= 1 {
		third = KindRemix
	}

	kinds := [3]Kind{KindExistingRecipe, KindNewIdea, third}
	ws := [3]int{s.weights.ExistingRecipeWeight, s.weights.NewIdeaWeight, s.weights.ExploreWeight}

	idx := weighted.Choose(s.intn, len(kinds), func(i int) int { return ws[i] })
	return kinds[idx]
}

func (s *Selector) attempt(ctx context.Context, kind Kind, nt *config.NotificationTypeConfig, uc *usercontext.UserContext) (*Outcome, error) {
	switch kind {
	case KindExistingRecipe:
		return s.existingRecipe(ctx, nt, uc)
	case KindNewIdea:
		return s.concept(ctx, KindNewIdea, config.PromptStageIdea, nt, uc, nil)
	case KindRemix:
		return s.remix(ctx, nt, uc)
	case KindSurprise:
		return s.concept(ctx, KindSurprise, config.PromptStageSurprise, nt, uc, nil)
	default:
		return nil, ErrNoContent
	}
}

// existingRecipe suggests a concrete recipe the user already knows. A missing
// candidate triggers fallback; a failed AI draft does not — the default
// template with the recipe name substituted is still a fine notification.
func (s *Selector) existingRecipe(ctx context.Context, nt *config.NotificationTypeConfig, uc *usercontext.UserContext) (*Outcome, error) {
	candidate, err := s.finder.FindExistingRecipe(ctx, uc, uc.ExcludedRecipeIDs())
	if err != nil {
		return nil, err
	}

	data := baseData(uc)
	data["RECIPE_NAME"] = candidate.Name
	data["CREATOR_NAME"] = candidate.CreatorName
	data["MEAL_TYPE"] = candidate.MealType

	outcome := &Outcome{
		Strategy: KindExistingRecipe,
		RecipeID: candidate.ID,
		Data:     data,
	}

	draft, err := s.generator.RecipeNotification(ctx, nt, uc, candidate)
	if err != nil {
		s.logger.WithContext(ctx).Warn("recipe draft generation failed, dispatching default template",
			slog.String("user_id", uc.UserID),
			slog.String("recipe", candidate.Name),
			slog.String("error", err.Error()))
		return outcome, nil
	}

	outcome.Draft = draft
	return outcome, nil
}

// remix suggests a twist on one of the user's own recipes. Missing base or
// generation failure both fall back to NewIdea.
func (s *Selector) remix(ctx context.Context, nt *config.NotificationTypeConfig, uc *usercontext.UserContext) (*Outcome, error) {
	base, err := s.finder.PersonalRecipe(ctx, uc, uc.ExcludedRecipeIDs())
	if err != nil {
		return nil, err
	}

	return s.concept(ctx, KindRemix, config.PromptStageRemix, nt, uc, map[string]string{
		"RECIPE_NAME": base.Name,
	})
}

// concept runs a single-stage strategy (idea, remix, surprise): one AI phrase
// becomes both the placeholder value and the chat-prompt deep link payload.
func (s *Selector) concept(ctx context.Context, kind Kind, stage string, nt *config.NotificationTypeConfig, uc *usercontext.UserContext, extra map[string]string) (*Outcome, error) {
	idea, err := s.generator.Concept(ctx, nt, stage, uc, extra)
	if err != nil {
		return nil, err
	}

	data := baseData(uc)
	data["RECIPE_IDEA_OR_REMIX"] = idea

	return &Outcome{
		Strategy: kind,
		Data:     data,
		DeepLink: chatPromptLink(nt.ChatPromptLinkBase, idea),
	}, nil
}

// baseData supplies the user-level placeholder values every strategy shares,
// so templates like a recap body can reference them regardless of which
// strategy won.
func baseData(uc *usercontext.UserContext) map[string]string {
	return map[string]string{
		"USER_NAME":  uc.DisplayName,
		"COOK_COUNT": strconv.FormatInt(uc.CookCount, 10),
	}
}

// chatPromptLink appends the URL-encoded idea to the configured chat link
// base (which carries its own query prefix, e.g. "plateful://chat?prompt=").
func chatPromptLink(base, idea string) string {
	if base == "" {
		return ""
	}
	return base + url.QueryEscape(idea)
}
