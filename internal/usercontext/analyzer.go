// Package usercontext builds the immutable per-user snapshot every
// downstream pipeline stage works from.
package usercontext

import (
	"context"
	"time"

	"github.com/platefulai/plateful-backend/internal/logger"
	"github.com/platefulai/plateful-backend/internal/store"
)

// UserContext is a per-run snapshot of a user's preferences and recent
// activity. Created fresh for each pipeline run, never mutated afterwards,
// never persisted.
type UserContext struct {
	UserID      string
	DisplayName string

	DietaryFilters []string
	Difficulty     string
	Persona        string

	RecentRecipeIDs     []string
	PersonalRecipeCount int
	CookCount           int64
	HasCookedRecently   bool
}

// ExcludedRecipeIDs returns the recent-activity exclusion set as a lookup map.
func (uc *UserContext) ExcludedRecipeIDs() map[string]bool {
	excluded := make(map[string]bool, len(uc.RecentRecipeIDs))
	for _, id := range uc.RecentRecipeIDs {
		excluded[id] = true
	}
	return excluded
}

// profileStore is the subset of the document store the analyzer reads.
type profileStore interface {
	GetUserProfile(ctx context.Context, userID string) (*store.UserProfile, error)
	GetPersonalRecipes(ctx context.Context, userID string) ([]store.PersonalRecipe, error)
}

// Analyzer builds UserContext snapshots. Pure read, no side effects.
type Analyzer struct {
	store  profileStore
	logger *logger.Logger
}

// NewAnalyzer creates a new user context analyzer.
func NewAnalyzer(s profileStore, log *logger.Logger) *Analyzer {
	return &Analyzer{
		store:  s,
		logger: log.WithComponent("usercontext"),
	}
}

// Analyze builds the snapshot for one user. A prefetched profile (from the
// batch scan) avoids a duplicate read; pass nil to fetch fresh. Returns
// store.ErrUserNotFound when the profile is absent; callers must skip the
// user on that outcome rather than retry.
func (a *Analyzer) Analyze(ctx context.Context, userID string, prefetched *store.UserProfile) (*UserContext, error) {
	profile := prefetched
	if profile == nil {
		var err error
		profile, err = a.store.GetUserProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	personal, err := a.store.GetPersonalRecipes(ctx, userID)
	if err != nil {
		// Activity data is a nice-to-have; a read failure here must not
		// block the notification.
		a.logger.WithContext(ctx).Warn("failed to read personal recipes, continuing without count",
			"user_id", userID, "error", err.Error())
		personal = nil
	}

	return &UserContext{
		UserID:              profile.ID,
		DisplayName:         profile.DisplayName,
		DietaryFilters:      profile.DietaryFilters,
		Difficulty:          profile.DifficultyPreference,
		Persona:             profile.PreferredPersona,
		RecentRecipeIDs:     profile.RecentRecipeIDs,
		PersonalRecipeCount: len(personal),
		CookCount:           profile.CookCount,
		HasCookedRecently:   time.Since(profile.LastCookedAt) < 14*24*time.Hour,
	}, nil
}
