package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/platefulai/plateful-backend/internal/logger"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sentinel errors callers can branch on.
var (
	ErrUserNotFound = errors.New("user not found")
)

const (
	usersCollection       = "users"
	catalogCollection     = "recipeCatalog"
	experimentsCollection = "experiments"
	recipesSubcollection  = "recipes"
	auditSubcollection    = "notificationAudit"

	tokensField = "pushTokens"
)

// Client wraps Firestore access for the notification pipeline.
type Client struct {
	fs     *firestore.Client
	logger *logger.Logger
}

// NewClient creates a new Firestore-backed store client.
func NewClient(fs *firestore.Client, log *logger.Logger) *Client {
	return &Client{
		fs:     fs,
		logger: log.WithComponent("store"),
	}
}

// GetUserProfile reads a user profile by id. Returns ErrUserNotFound when the
// document does not exist; callers must skip the user, not retry.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID must be non-empty")
	}

	doc, err := c.fs.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}

	var profile UserProfile
	if err := doc.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("failed to parse user %s: %w", userID, err)
	}
	profile.ID = doc.Ref.ID

	return &profile, nil
}

// GetUserTokens re-reads the current device tokens for a user. Dispatch calls
// this immediately before sending so the token set is never stale.
func (c *Client) GetUserTokens(ctx context.Context, userID string) ([]string, error) {
	profile, err := c.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(profile.PushTokens))
	for _, t := range profile.PushTokens {
		if strings.TrimSpace(t) != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}

// RemoveUserTokens removes invalid device tokens from the user's token list
// with a single array-remove update. Best effort; last-write-wins is fine for
// a per-user token array.
func (c *Client) RemoveUserTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	removals := make([]interface{}, len(tokens))
	for i, t := range tokens {
		removals[i] = t
	}

	_, err := c.fs.Collection(usersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: tokensField, Value: firestore.ArrayRemove(removals...)},
	})
	if err != nil {
		return fmt.Errorf("failed to remove %d token(s) for user %s: %w", len(tokens), userID, err)
	}

	c.logger.Info("removed invalid push tokens",
		slog.String("user_id", userID),
		slog.Int("removed", len(tokens)))
	return nil
}

// EachUser iterates the whole user population in pages, invoking fn for every
// profile. Iteration stops when fn returns a non-nil error.
func (c *Client) EachUser(ctx context.Context, pageSize int, fn func(*UserProfile) error) error {
	if pageSize <= 0 {
		pageSize = 200
	}

	var lastID string
	for {
		query := c.fs.Collection(usersCollection).
			OrderBy(firestore.DocumentID, firestore.Asc).
			Limit(pageSize)
		if lastID != "" {
			query = query.StartAfter(lastID)
		}

		docs, err := query.Documents(ctx).GetAll()
		if err != nil {
			return fmt.Errorf("failed to scan users after %q: %w", lastID, err)
		}
		if len(docs) == 0 {
			return nil
		}

		for _, doc := range docs {
			var profile UserProfile
			if err := doc.DataTo(&profile); err != nil {
				// A malformed profile must not stop the scan.
				c.logger.Warn("skipping unparsable user document",
					slog.String("user_id", doc.Ref.ID),
					slog.String("error", err.Error()))
				continue
			}
			profile.ID = doc.Ref.ID

			if err := fn(&profile); err != nil {
				return err
			}
		}

		lastID = docs[len(docs)-1].Ref.ID
		if len(docs) < pageSize {
			return nil
		}
	}
}

// QueryCatalog reads curated catalog recipes, optionally filtered by the
// user's declared difficulty preference.
func (c *Client) QueryCatalog(ctx context.Context, difficulty string) ([]CatalogRecipe, error) {
	query := c.fs.Collection(catalogCollection).Where("curated", "==", true)
	if difficulty != "" {
		query = query.Where("difficulty", "==", difficulty)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var recipes []CatalogRecipe
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query recipe catalog: %w", err)
		}

		var recipe CatalogRecipe
		if err := doc.DataTo(&recipe); err != nil {
			c.logger.Warn("skipping unparsable catalog recipe",
				slog.String("recipe_id", doc.Ref.ID),
				slog.String("error", err.Error()))
			continue
		}
		recipe.ID = doc.Ref.ID
		recipes = append(recipes, recipe)
	}

	return recipes, nil
}

// GetPersonalRecipes reads the user's own recipe collection.
func (c *Client) GetPersonalRecipes(ctx context.Context, userID string) ([]PersonalRecipe, error) {
	docs, err := c.fs.Collection(usersCollection).Doc(userID).
		Collection(recipesSubcollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read personal recipes for user %s: %w", userID, err)
	}

	recipes := make([]PersonalRecipe, 0, len(docs))
	for _, doc := range docs {
		var recipe PersonalRecipe
		if err := doc.DataTo(&recipe); err != nil {
			c.logger.Warn("skipping unparsable personal recipe",
				slog.String("user_id", userID),
				slog.String("recipe_id", doc.Ref.ID),
				slog.String("error", err.Error()))
			continue
		}
		recipe.ID = doc.Ref.ID
		recipes = append(recipes, recipe)
	}

	return recipes, nil
}

// ActiveExperiment returns the active experiment for a notification type, or
// nil when there is none. At most one active experiment per type is honored.
func (c *Client) ActiveExperiment(ctx context.Context, notificationType string) (*Experiment, error) {
	docs, err := c.fs.Collection(experimentsCollection).
		Where("notificationType", "==", notificationType).
		Where("isActive", "==", true).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query experiments for %s: %w", notificationType, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var exp Experiment
	if err := docs[0].DataTo(&exp); err != nil {
		return nil, fmt.Errorf("failed to parse experiment %s: %w", docs[0].Ref.ID, err)
	}
	exp.ExperimentID = docs[0].Ref.ID

	return &exp, nil
}

// SaveAuditRecord writes one audit record to the user's notification audit
// subcollection.
func (c *Client) SaveAuditRecord(ctx context.Context, userID string, record *AuditRecord) error {
	id := uuid.New().String()
	_, err := c.fs.Collection(usersCollection).Doc(userID).
		Collection(auditSubcollection).Doc(id).Create(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to save audit record for user %s: %w", userID, err)
	}
	return nil
}
