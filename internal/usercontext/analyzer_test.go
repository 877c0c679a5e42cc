package usercontext

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfileStore struct {
	profiles map[string]*store.UserProfile
	personal map[string][]store.PersonalRecipe
	getCalls int
}

func (f *fakeProfileStore) GetUserProfile(ctx context.Context, userID string) (*store.UserProfile, error) {
	f.getCalls++
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return p, nil
}

func (f *fakeProfileStore) GetPersonalRecipes(ctx context.Context, userID string) ([]store.PersonalRecipe, error) {
	return f.personal[userID], nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError})
}

func TestAnalyzeMissingUser(t *testing.T) {
	a := NewAnalyzer(&fakeProfileStore{}, testLogger())

	_, err := a.Analyze(context.Background(), "ghost", nil)
	assert.True(t, errors.Is(err, store.ErrUserNotFound))
}

func TestAnalyzeBuildsSnapshot(t *testing.T) {
	fs := &fakeProfileStore{
		profiles: map[string]*store.UserProfile{
			"u1": {
				ID:                   "u1",
				DisplayName:          "Dana",
				DietaryFilters:       []string{"vegan"},
				DifficultyPreference: "easy",
				RecentRecipeIDs:      []string{"r1", "r2"},
				CookCount:            12,
				LastCookedAt:         time.Now().Add(-48 * time.Hour),
			},
		},
		personal: map[string][]store.PersonalRecipe{
			"u1": {{ID: "p1", Name: "Family chili"}},
		},
	}
	a := NewAnalyzer(fs, testLogger())

	uc, err := a.Analyze(context.Background(), "u1", nil)
	require.NoError(t, err)

	assert.Equal(t, "Dana", uc.DisplayName)
	assert.Equal(t, 1, uc.PersonalRecipeCount)
	assert.Equal(t, int64(12), uc.CookCount)
	assert.True(t, uc.HasCookedRecently)
	assert.Equal(t, map[string]bool{"r1": true, "r2": true}, uc.ExcludedRecipeIDs())
}

func TestAnalyzeUsesPrefetchedProfile(t *testing.T) {
	fs := &fakeProfileStore{profiles: map[string]*store.UserProfile{}}
	a := NewAnalyzer(fs, testLogger())

	prefetched := &store.UserProfile{ID: "u2", DisplayName: "Sam"}
	uc, err := a.Analyze(context.Background(), "u2", prefetched)
	require.NoError(t, err)

	assert.Equal(t, "Sam", uc.DisplayName)
	assert.Zero(t, fs.getCalls, "prefetched profile must not trigger a second read")
}
