package store

import "time"

// UserProfile is the user document at /users/{uid}.
type UserProfile struct {
	ID          string `firestore:"-"`
	DisplayName string `firestore:"displayName"`

	// Preferences
	DietaryFilters       []string `firestore:"dietaryFilters"`
	DifficultyPreference string   `firestore:"difficultyPreference"`
	PreferredPersona     string   `firestore:"preferredPersona"`

	// Notification gating. A nil NotificationsEnabled means enabled.
	// NotificationOptOuts maps notification type -> flag; an explicit false
	// means opted out, unset means opted in.
	NotificationsEnabled *bool           `firestore:"notificationsEnabled"`
	NotificationOptOuts  map[string]bool `firestore:"notificationOptOuts"`

	// Device tokens for the push gateway.
	PushTokens []string `firestore:"pushTokens"`

	// Coarse activity summary.
	RecentRecipeIDs []string  `firestore:"recentRecipeIds"`
	CookCount       int64     `firestore:"cookCount"`
	LastCookedAt    time.Time `firestore:"lastCookedAt"`
}

// CatalogRecipe is a curated recipe at /recipeCatalog/{id}.
type CatalogRecipe struct {
	ID          string   `firestore:"-"`
	Name        string   `firestore:"name"`
	Tags        []string `firestore:"tags"`
	Difficulty  string   `firestore:"difficulty"`
	Curated     bool     `firestore:"curated"`
	CreatorName string   `firestore:"creatorName"`
	MealType    string   `firestore:"mealType"`
}

// PersonalRecipe is a recipe in the user's own collection at
// /users/{uid}/recipes/{id}.
type PersonalRecipe struct {
	ID   string `firestore:"-"`
	Name string `firestore:"name"`
}

// Experiment is an A/B experiment document at /experiments/{id}.
type Experiment struct {
	ExperimentID     string    `firestore:"-"`
	NotificationType string    `firestore:"notificationType"`
	IsActive         bool      `firestore:"isActive"`
	Variants         []Variant `firestore:"variants"`
}

// Variant is one wording alternative of an experiment.
type Variant struct {
	VariantID string `firestore:"variantId"`
	Weight    int    `firestore:"weight"`
	Title     string `firestore:"title"`
	Body      string `firestore:"body"`
	Emoji     string `firestore:"emoji"`
	DeepLink  string `firestore:"deepLink"`
}

// AuditRecord is written to /users/{uid}/notificationAudit/{id} after every
// dispatch that reached the push gateway.
type AuditRecord struct {
	NotificationType string    `firestore:"notificationType"`
	Strategy         string    `firestore:"strategy"`
	ExperimentID     string    `firestore:"experimentId"`
	VariantID        string    `firestore:"variantId"`
	Title            string    `firestore:"title"`
	Body             string    `firestore:"body"`
	DeepLink         string    `firestore:"deepLink"`
	TokensAttempted  int       `firestore:"tokensAttempted"`
	SuccessCount     int       `firestore:"successCount"`
	FailureCount     int       `firestore:"failureCount"`
	RemovedTokens    []string  `firestore:"removedTokens"`
	Status           string    `firestore:"status"`
	SentAt           time.Time `firestore:"sentAt"`
}
