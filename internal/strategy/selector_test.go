package strategy

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/platefulai/plateful-backend/internal/candidates"
	"github.com/platefulai/plateful-backend/internal/config"
	"github.com/platefulai/plateful-backend/internal/content"
	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	existing    *candidates.RecipeCandidate
	existingErr error
	personal    *candidates.RecipeCandidate
	personalErr error

	existingCalls int
	personalCalls int
}

func (f *fakeFinder) FindExistingRecipe(ctx context.Context, uc *usercontext.UserContext, excluded map[string]bool) (*candidates.RecipeCandidate, error) {
	f.existingCalls++
	return f.existing, f.existingErr
}

func (f *fakeFinder) PersonalRecipe(ctx context.Context, uc *usercontext.UserContext, excluded map[string]bool) (*candidates.RecipeCandidate, error) {
	f.personalCalls++
	return f.personal, f.personalErr
}

type fakeGenerator struct {
	concepts    map[string]string
	conceptErrs map[string]error
	draft       *content.Draft
	draftErr    error

	conceptStages []string
}

func (f *fakeGenerator) Concept(ctx context.Context, nt *config.NotificationTypeConfig, stage string, uc *usercontext.UserContext, extra map[string]string) (string, error) {
	f.conceptStages = append(f.conceptStages, stage)
	if err := f.conceptErrs[stage]; err != nil {
		return "", err
	}
	if idea, ok := f.concepts[stage]; ok {
		return idea, nil
	}
	return "", &content.GenerationError{Stage: stage, Err: errors.New("no prompt configured")}
}

func (f *fakeGenerator) RecipeNotification(ctx context.Context, nt *config.NotificationTypeConfig, uc *usercontext.UserContext, candidate *candidates.RecipeCandidate) (*content.Draft, error) {
	return f.draft, f.draftErr
}

// forceDraw pins the weighted initial selection: 0 lands on ExistingRecipe,
// 60 on NewIdea, 80 on the third slot (default 60/20/20 weights).
func newTestSelector(finder *fakeFinder, gen *fakeGenerator, forceDraw int) *Selector {
	weights := config.StrategyConfig{ExistingRecipeWeight: 60, NewIdeaWeight: 20, ExploreWeight: 20}
	s := NewSelector(finder, gen, weights, logger.New(logger.Config{Level: slog.LevelError}))
	s.intn = func(n int) int { return forceDraw % n }
	return s
}

func testNT() *config.NotificationTypeConfig {
	return &config.NotificationTypeConfig{
		Enabled:            true,
		DefaultTitle:       "Dinner time",
		DefaultBody:        "How about {RECIPE_NAME}?",
		DeepLinkBase:       "plateful://recipes",
		ChatPromptLinkBase: "plateful://chat?prompt=",
	}
}

func userWith(personalCount int) *usercontext.UserContext {
	return &usercontext.UserContext{UserID: "u1", DisplayName: "Dana", PersonalRecipeCount: personalCount}
}

func TestSelectExistingRecipeWithDraft(t *testing.T) {
	finder := &fakeFinder{existing: &candidates.RecipeCandidate{ID: "r1", Name: "Shakshuka", CreatorName: "Ari", MealType: "breakfast"}}
	gen := &fakeGenerator{draft: &content.Draft{Title: "Brunch calls", Body: "Shakshuka again?"}}

	outcome, err := newTestSelector(finder, gen, 0).Select(context.Background(), testNT(), userWith(0))
	require.NoError(t, err)

	assert.Equal(t, KindExistingRecipe, outcome.Strategy)
	require.NotNil(t, outcome.Draft)
	assert.Equal(t, "Brunch calls", outcome.Draft.Title)
	assert.Equal(t, "r1", outcome.RecipeID)
	assert.Equal(t, "Shakshuka", outcome.Data["RECIPE_NAME"])
	assert.Equal(t, "Ari", outcome.Data["CREATOR_NAME"])
}

func TestSelectExistingRecipeDraftFailureKeepsStrategy(t *testing.T) {
	finder := &fakeFinder{existing: &candidates.RecipeCandidate{ID: "r1", Name: "Shakshuka"}}
	gen := &fakeGenerator{draftErr: &content.GenerationError{Stage: config.PromptStageNotification, Err: errors.New("malformed JSON")}}

	outcome, err := newTestSelector(finder, gen, 0).Select(context.Background(), testNT(), userWith(0))
	require.NoError(t, err)

	// A failed draft still dispatches: default template + {RECIPE_NAME}.
	assert.Equal(t, KindExistingRecipe, outcome.Strategy)
	assert.Nil(t, outcome.Draft)
	assert.Equal(t, "Shakshuka", outcome.Data["RECIPE_NAME"])
}

func TestSelectExistingRecipeExhaustedFallsBackToNewIdea(t *testing.T) {
	finder := &fakeFinder{existingErr: candidates.ErrNoCandidates}
	gen := &fakeGenerator{concepts: map[string]string{config.PromptStageIdea: "charred corn ribs"}}

	outcome, err := newTestSelector(finder, gen, 0).Select(context.Background(), testNT(), userWith(0))
	require.NoError(t, err)

	assert.Equal(t, KindNewIdea, outcome.Strategy)
	assert.Equal(t, "charred corn ribs", outcome.Data["RECIPE_IDEA_OR_REMIX"])
	assert.Equal(t, "plateful://chat?prompt=charred+corn+ribs", outcome.DeepLink)
}

func TestSelectNewIdeaFailureSkips(t *testing.T) {
	gen := &fakeGenerator{conceptErrs: map[string]error{
		config.PromptStageIdea: &content.GenerationError{Stage: config.PromptStageIdea, Err: errors.New("timeout")},
	}}

	_, err := newTestSelector(&fakeFinder{}, gen, 60).Select(context.Background(), testNT(), userWith(0))

	assert.ErrorIs(t, err, ErrNoContent)
}

func TestSelectThirdSlotIsSurpriseWithoutPersonalRecipes(t *testing.T) {
	gen := &fakeGenerator{concepts: map[string]string{config.PromptStageSurprise: "midnight ramen"}}

	outcome, err := newTestSelector(&fakeFinder{}, gen, 80).Select(context.Background(), testNT(), userWith(0))
	require.NoError(t, err)

	assert.Equal(t, KindSurprise, outcome.Strategy)
	assert.Equal(t, []string{config.PromptStageSurprise}, gen.conceptStages)
}

func TestSelectThirdSlotIsRemixWithPersonalRecipes(t *testing.T) {
	finder := &fakeFinder{personal: &candidates.RecipeCandidate{ID: "p1", Name: "Mom's lasagna", Origin: candidates.OriginPersonal}}
	gen := &fakeGenerator{concepts: map[string]string{config.PromptStageRemix: "lasagna but with kimchi"}}

	outcome, err := newTestSelector(finder, gen, 80).Select(context.Background(), testNT(), userWith(3))
	require.NoError(t, err)

	assert.Equal(t, KindRemix, outcome.Strategy)
	assert.Equal(t, 1, finder.personalCalls)
	assert.Equal(t, "lasagna but with kimchi", outcome.Data["RECIPE_IDEA_OR_REMIX"])
}

func TestSelectRemixMissingBaseFallsBackToNewIdea(t *testing.T) {
	finder := &fakeFinder{personalErr: candidates.ErrNoCandidates}
	gen := &fakeGenerator{concepts: map[string]string{config.PromptStageIdea: "sheet-pan gnocchi"}}

	outcome, err := newTestSelector(finder, gen, 80).Select(context.Background(), testNT(), userWith(2))
	require.NoError(t, err)

	assert.Equal(t, KindNewIdea, outcome.Strategy)
}

func TestSelectRemixGenerationFailureFallsBackToNewIdea(t *testing.T) {
	finder := &fakeFinder{personal: &candidates.RecipeCandidate{ID: "p1", Name: "Mom's lasagna"}}
	gen := &fakeGenerator{
		concepts:    map[string]string{config.PromptStageIdea: "sheet-pan gnocchi"},
		conceptErrs: map[string]error{config.PromptStageRemix: errors.New("503 upstream")},
	}

	outcome, err := newTestSelector(finder, gen, 80).Select(context.Background(), testNT(), userWith(2))
	require.NoError(t, err)

	assert.Equal(t, KindNewIdea, outcome.Strategy)
	assert.Equal(t, []string{config.PromptStageRemix, config.PromptStageIdea}, gen.conceptStages)
}

func TestSelectOutcomesCarryUserActivityData(t *testing.T) {
	finder := &fakeFinder{existing: &candidates.RecipeCandidate{ID: "r1", Name: "Shakshuka"}}
	gen := &fakeGenerator{
		draft:    &content.Draft{Title: "t", Body: "b"},
		concepts: map[string]string{config.PromptStageIdea: "corn ribs"},
	}

	uc := userWith(0)
	uc.CookCount = 4

	// Every strategy's data map must cover the user-level template values,
	// so types with no prompts still render bodies like the weekly recap.
	outcome, err := newTestSelector(finder, gen, 0).Select(context.Background(), testNT(), uc)
	require.NoError(t, err)
	assert.Equal(t, "4", outcome.Data["COOK_COUNT"])
	assert.Equal(t, "Dana", outcome.Data["USER_NAME"])

	outcome, err = newTestSelector(finder, gen, 60).Select(context.Background(), testNT(), uc)
	require.NoError(t, err)
	assert.Equal(t, KindNewIdea, outcome.Strategy)
	assert.Equal(t, "4", outcome.Data["COOK_COUNT"])
}

func TestSelectNeverRevisitsAFailedStrategy(t *testing.T) {
	finder := &fakeFinder{existingErr: candidates.ErrNoCandidates}
	gen := &fakeGenerator{conceptErrs: map[string]error{
		config.PromptStageIdea: errors.New("timeout"),
	}}

	_, err := newTestSelector(finder, gen, 0).Select(context.Background(), testNT(), userWith(0))

	assert.ErrorIs(t, err, ErrNoContent)
	assert.Equal(t, 1, finder.existingCalls, "a failed strategy must not be retried in the same run")
	assert.Equal(t, []string{config.PromptStageIdea}, gen.conceptStages)
}
