package candidates

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/store"
	"github.com/platefulai/plateful-backend/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecipeStore struct {
	catalog    []store.CatalogRecipe
	catalogErr error
	personal   []store.PersonalRecipe
}

func (f *fakeRecipeStore) QueryCatalog(ctx context.Context, difficulty string) ([]store.CatalogRecipe, error) {
	return f.catalog, f.catalogErr
}

func (f *fakeRecipeStore) GetPersonalRecipes(ctx context.Context, userID string) ([]store.PersonalRecipe, error) {
	return f.personal, nil
}

func newTestFinder(s recipeStore) *Finder {
	f := NewFinder(s, logger.New(logger.Config{Level: slog.LevelError}))
	f.intn = func(n int) int { return 0 }
	return f
}

func TestFindExistingRecipeDietaryFilterRequiresAllTags(t *testing.T) {
	fs := &fakeRecipeStore{
		catalog: []store.CatalogRecipe{
			{ID: "r1", Name: "Steak", Tags: []string{"gluten-free"}},
			{ID: "r2", Name: "Lentil curry", Tags: []string{"Vegan", "GLUTEN-FREE"}},
		},
	}
	uc := &usercontext.UserContext{UserID: "u1", DietaryFilters: []string{"vegan", "gluten-free"}}

	got, err := newTestFinder(fs).FindExistingRecipe(context.Background(), uc, nil)
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ID)
	assert.Equal(t, OriginCatalog, got.Origin)
}

func TestFindExistingRecipeHonorsExclusionSet(t *testing.T) {
	fs := &fakeRecipeStore{
		catalog: []store.CatalogRecipe{
			{ID: "r1", Name: "Soup"},
			{ID: "r2", Name: "Stew"},
		},
	}
	uc := &usercontext.UserContext{UserID: "u1"}

	got, err := newTestFinder(fs).FindExistingRecipe(context.Background(), uc, map[string]bool{"r1": true})
	require.NoError(t, err)
	assert.Equal(t, "r2", got.ID)
}

func TestFindExistingRecipeFallsBackToPersonal(t *testing.T) {
	fs := &fakeRecipeStore{
		catalog: []store.CatalogRecipe{
			{ID: "r1", Name: "Bacon pasta", Tags: []string{"meat"}},
		},
		personal: []store.PersonalRecipe{
			{ID: "p1", Name: "Grandma's greens"},
		},
	}
	// Dietary filter knocks out the whole catalog; personal pool has no
	// dietary filter applied.
	uc := &usercontext.UserContext{UserID: "u1", DietaryFilters: []string{"vegetarian"}}

	got, err := newTestFinder(fs).FindExistingRecipe(context.Background(), uc, nil)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, OriginPersonal, got.Origin)
}

func TestFindExistingRecipeBothPoolsExhausted(t *testing.T) {
	fs := &fakeRecipeStore{
		personal: []store.PersonalRecipe{{ID: "p1", Name: "Toast"}},
	}
	uc := &usercontext.UserContext{UserID: "u1"}

	_, err := newTestFinder(fs).FindExistingRecipe(context.Background(), uc, map[string]bool{"p1": true})
	assert.True(t, errors.Is(err, ErrNoCandidates))
}

func TestFindExistingRecipeCatalogErrorDegradesToPersonal(t *testing.T) {
	fs := &fakeRecipeStore{
		catalogErr: errors.New("firestore unavailable"),
		personal:   []store.PersonalRecipe{{ID: "p1", Name: "Omelette"}},
	}
	uc := &usercontext.UserContext{UserID: "u1"}

	got, err := newTestFinder(fs).FindExistingRecipe(context.Background(), uc, nil)
	require.NoError(t, err)
	assert.Equal(t, OriginPersonal, got.Origin)
}
