// Package content turns a chosen strategy, user context, and candidate into
// notification text. Every AI call here is fallible by design: failures are
// reported as GenerationError and the caller falls back to the notification
// type's default template.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/platefulai/plateful-backend/internal/candidates"
	"github.com/platefulai/plateful-backend/internal/config"
	"github.com/platefulai/plateful-backend/internal/genai"
	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/usercontext"
)

// Draft is the structured output of the two-stage existing-recipe flow.
// Title and Body are required; Emoji and DeepLink are optional overrides.
type Draft struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Emoji    string `json:"emoji"`
	DeepLink string `json:"deepLink"`
}

// GenerationError wraps any content generation failure: network error, safety
// block, unparsable output, missing required field. It is always recovered
// locally — the pipeline never aborts on a single bad AI call.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("content generation failed at stage %q: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// textGenerator is the AI collaborator. Implemented by *genai.Client.
type textGenerator interface {
	Generate(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// Generator produces notification content.
type Generator struct {
	ai     textGenerator
	logger *logger.Logger
}

// NewGenerator creates a new content generator.
func NewGenerator(ai textGenerator, log *logger.Logger) *Generator {
	return &Generator{
		ai:     ai,
		logger: log.WithComponent("content"),
	}
}

// Concept runs a single-stage generation (idea, remix, surprise): one AI call
// with the stage's prompt, returning a short phrase. The word budget is
// enforced by the prompt, not by truncation.
func (g *Generator) Concept(ctx context.Context, nt *config.NotificationTypeConfig, stage string, uc *usercontext.UserContext, extra map[string]string) (string, error) {
	prompt := nt.Prompt(stage)
	if prompt == "" {
		return "", &GenerationError{Stage: stage, Err: fmt.Errorf("no prompt configured")}
	}

	data := promptData(uc)
	for k, v := range extra {
		data[k] = v
	}

	text, err := g.ai.Generate(ctx, RenderTemplate(prompt, data), cookProfileLine(uc))
	if err != nil {
		g.logger.WithContext(ctx).Warn("concept generation failed",
			slog.String("stage", stage),
			slog.String("error", err.Error()))
		return "", &GenerationError{Stage: stage, Err: err}
	}

	text = strings.Trim(strings.TrimSpace(text), `"'`)
	if text == "" {
		return "", &GenerationError{Stage: stage, Err: fmt.Errorf("empty response")}
	}

	return text, nil
}

// RecipeNotification runs the two-stage existing-recipe flow: stage one
// produces a short narrative hook about the candidate, stage two turns the
// hook plus recipe name into a structured draft. A stage-one failure degrades
// to a template hook; a stage-two failure is a GenerationError and the caller
// sends the default template instead.
func (g *Generator) RecipeNotification(ctx context.Context, nt *config.NotificationTypeConfig, uc *usercontext.UserContext, candidate *candidates.RecipeCandidate) (*Draft, error) {
	log := g.logger.WithContext(ctx)

	hook := fmt.Sprintf("%s is back on the menu for you.", candidate.Name)
	if storyPrompt := nt.Prompt(config.PromptStageStory); storyPrompt != "" {
		data := promptData(uc)
		data["RECIPE_NAME"] = candidate.Name
		generated, err := g.ai.Generate(ctx, RenderTemplate(storyPrompt, data), cookProfileLine(uc))
		if err != nil {
			log.Warn("story stage failed, using template hook",
				slog.String("recipe", candidate.Name),
				slog.String("error", err.Error()))
		} else if trimmed := strings.TrimSpace(generated); trimmed != "" {
			hook = trimmed
		}
	}

	notifPrompt := nt.Prompt(config.PromptStageNotification)
	if notifPrompt == "" {
		return nil, &GenerationError{Stage: config.PromptStageNotification, Err: fmt.Errorf("no prompt configured")}
	}

	data := promptData(uc)
	data["RECIPE_NAME"] = candidate.Name
	data["STORY_HOOK"] = hook

	raw, err := g.ai.Generate(ctx, RenderTemplate(notifPrompt, data), cookProfileLine(uc))
	if err != nil {
		log.Warn("notification stage failed",
			slog.String("recipe", candidate.Name),
			slog.String("error", err.Error()))
		return nil, &GenerationError{Stage: config.PromptStageNotification, Err: err}
	}

	draft, err := parseDraft(raw)
	if err != nil {
		log.Warn("notification stage returned unusable output",
			slog.String("recipe", candidate.Name),
			slog.String("error", err.Error()))
		return nil, &GenerationError{Stage: config.PromptStageNotification, Err: err}
	}

	return draft, nil
}

// parseDraft extracts and validates the structured stage-two output.
func parseDraft(raw string) (*Draft, error) {
	jsonText, err := genai.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var draft Draft
	if err := json.Unmarshal([]byte(jsonText), &draft); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Body = strings.TrimSpace(draft.Body)
	if draft.Title == "" || draft.Body == "" {
		return nil, fmt.Errorf("draft is missing required title or body")
	}

	return &draft, nil
}

func promptData(uc *usercontext.UserContext) map[string]string {
	return map[string]string{
		"USER_NAME":       uc.DisplayName,
		"DIETARY_FILTERS": strings.Join(uc.DietaryFilters, ", "),
		"DIFFICULTY":      uc.Difficulty,
		"PERSONA":         uc.Persona,
	}
}

func cookProfileLine(uc *usercontext.UserContext) string {
	return fmt.Sprintf("Cook: %s. Dietary filters: %s. Preferred difficulty: %s.",
		uc.DisplayName, strings.Join(uc.DietaryFilters, ", "), uc.Difficulty)
}
