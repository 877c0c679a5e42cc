// Package candidates finds concrete recipe candidates for a suggestion
// strategy, with a two-tier fallback from the curated catalog to the user's
// personal collection.
package candidates

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/store"
	"github.com/platefulai/plateful-backend/internal/usercontext"
)

// ErrNoCandidates means both the curated catalog and the personal collection
// are exhausted for this user.
var ErrNoCandidates = errors.New("no recipe candidates available")

// Origin tells which pool a candidate came from.
type Origin string

const (
	OriginCatalog  Origin = "catalog"
	OriginPersonal Origin = "personal"
)

// RecipeCandidate is a concrete recipe a strategy can suggest. Consumed once,
// then discarded.
type RecipeCandidate struct {
	ID          string
	Name        string
	Origin      Origin
	CreatorName string
	MealType    string
}

// recipeStore is the subset of the document store the finder queries.
type recipeStore interface {
	QueryCatalog(ctx context.Context, difficulty string) ([]store.CatalogRecipe, error)
	GetPersonalRecipes(ctx context.Context, userID string) ([]store.PersonalRecipe, error)
}

// Finder picks recipe candidates for a user.
type Finder struct {
	store  recipeStore
	intn   func(int) int
	logger *logger.Logger
}

// NewFinder creates a new candidate finder.
func NewFinder(s recipeStore, log *logger.Logger) *Finder {
	return &Finder{
		store:  s,
		intn:   rand.Intn,
		logger: log.WithComponent("candidates"),
	}
}

// FindExistingRecipe picks a recipe for the ExistingRecipe strategy: curated
// catalog filtered by difficulty, exclusion set, and dietary tags, then a
// uniform pick among the survivors. An empty curated pool falls back to the
// user's personal collection with the exclusion filter only — a thin
// personal pool must not block suggestions entirely. Returns ErrNoCandidates
// when both pools are exhausted.
func (f *Finder) FindExistingRecipe(ctx context.Context, uc *usercontext.UserContext, excluded map[string]bool) (*RecipeCandidate, error) {
	log := f.logger.WithContext(ctx)

	catalog, err := f.store.QueryCatalog(ctx, uc.Difficulty)
	if err != nil {
		// A catalog read failure degrades to the personal pool.
		log.Warn("catalog query failed, falling back to personal collection",
			slog.String("user_id", uc.UserID),
			slog.String("error", err.Error()))
		catalog = nil
	}

	var survivors []store.CatalogRecipe
	for _, recipe := range catalog {
		if excluded[recipe.ID] {
			continue
		}
		if !hasAllDietaryTags(recipe.Tags, uc.DietaryFilters) {
			continue
		}
		survivors = append(survivors, recipe)
	}

	if len(survivors) > 0 {
		pick := survivors[f.intn(len(survivors))]
		return &RecipeCandidate{
			ID:          pick.ID,
			Name:        pick.Name,
			Origin:      OriginCatalog,
			CreatorName: pick.CreatorName,
			MealType:    pick.MealType,
		}, nil
	}

	log.Debug("no curated candidates survived filtering, trying personal collection",
		slog.String("user_id", uc.UserID),
		slog.Int("catalog_size", len(catalog)))

	return f.PersonalRecipe(ctx, uc, excluded)
}

// PersonalRecipe picks uniformly from the user's own collection, skipping the
// exclusion set. No dietary filter applies here: the user saved these recipes
// themselves. Also serves as the Remix strategy's base lookup.
func (f *Finder) PersonalRecipe(ctx context.Context, uc *usercontext.UserContext, excluded map[string]bool) (*RecipeCandidate, error) {
	personal, err := f.store.GetPersonalRecipes(ctx, uc.UserID)
	if err != nil {
		f.logger.WithContext(ctx).Warn("personal collection read failed",
			slog.String("user_id", uc.UserID),
			slog.String("error", err.Error()))
		return nil, ErrNoCandidates
	}

	var survivors []store.PersonalRecipe
	for _, recipe := range personal {
		if excluded[recipe.ID] {
			continue
		}
		survivors = append(survivors, recipe)
	}

	if len(survivors) == 0 {
		return nil, ErrNoCandidates
	}

	pick := survivors[f.intn(len(survivors))]
	return &RecipeCandidate{
		ID:     pick.ID,
		Name:   pick.Name,
		Origin: OriginPersonal,
	}, nil
}

// hasAllDietaryTags reports whether the recipe carries every active dietary
// filter as a tag, case-insensitively.
func hasAllDietaryTags(tags, filters []string) bool {
	if len(filters) == 0 {
		return true
	}

	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[strings.ToLower(strings.TrimSpace(tag))] = true
	}

	for _, filter := range filters {
		filter = strings.ToLower(strings.TrimSpace(filter))
		if filter == "" {
			continue
		}
		if !tagSet[filter] {
			return false
		}
	}
	return true
}
