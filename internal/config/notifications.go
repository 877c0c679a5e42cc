package config

import "errors"

// Prompt stage keys within NotificationTypeConfig.Prompts.
const (
	PromptStageStory        = "story"
	PromptStageNotification = "notification"
	PromptStageIdea         = "idea"
	PromptStageRemix        = "remix"
	PromptStageSurprise     = "surprise"
)

// NotificationTypeConfig describes one notification kind (weekly suggestion,
// recap, reminder). Loaded once at process start and treated as immutable.
type NotificationTypeConfig struct {
	Enabled bool `yaml:"enabled"`

	// Default content template. Placeholder tokens like {RECIPE_NAME} are
	// substituted at dispatch time.
	DefaultTitle string `yaml:"default_title"`
	DefaultBody  string `yaml:"default_body"`
	DefaultEmoji string `yaml:"default_emoji"`

	// AI prompt templates keyed by generation stage.
	Prompts map[string]string `yaml:"prompts"`

	// Deep link construction.
	DeepLinkBase       string `yaml:"deep_link_base"`
	ChatPromptLinkBase string `yaml:"chat_prompt_link_base"`

	// Optional static A/B experiment, consulted when the remote experiment
	// store has no active experiment for this type.
	Experiment *ExperimentConfig `yaml:"experiment"`

	// Optional cron spec for the in-process scheduler.
	Schedule string `yaml:"schedule"`
}

func (nt *NotificationTypeConfig) validate() error {
	if nt.DefaultTitle == "" || nt.DefaultBody == "" {
		return errors.New("default_title and default_body are required")
	}
	if nt.DeepLinkBase == "" {
		return errors.New("deep_link_base is required")
	}
	return nil
}

// Prompt returns the prompt template for a generation stage, or "" when the
// stage is not configured.
func (nt *NotificationTypeConfig) Prompt(stage string) string {
	if nt.Prompts == nil {
		return ""
	}
	return nt.Prompts[stage]
}

// ExperimentConfig is a statically configured A/B experiment.
type ExperimentConfig struct {
	ExperimentID string          `yaml:"experiment_id"`
	IsActive     bool            `yaml:"is_active"`
	Variants     []VariantConfig `yaml:"variants"`
}

// VariantConfig is one wording alternative inside a static experiment.
type VariantConfig struct {
	VariantID string `yaml:"variant_id"`
	Weight    int    `yaml:"weight"`
	Title     string `yaml:"title"`
	Body      string `yaml:"body"`
	Emoji     string `yaml:"emoji"`
	DeepLink  string `yaml:"deep_link"`
}

// StrategyConfig holds the suggestion strategy selection weights. The values
// are product policy, not structure, so they live in config rather than code.
type StrategyConfig struct {
	ExistingRecipeWeight int `yaml:"existing_recipe_weight"`
	NewIdeaWeight        int `yaml:"new_idea_weight"`
	// ExploreWeight covers the third slot: Remix when the user has at least
	// one personal recipe, Surprise otherwise.
	ExploreWeight int `yaml:"explore_weight"`
}

func (s *StrategyConfig) applyDefaults() {
	if s.ExistingRecipeWeight == 0 && s.NewIdeaWeight == 0 && s.ExploreWeight == 0 {
		s.ExistingRecipeWeight = 60
		s.NewIdeaWeight = 20
		s.ExploreWeight = 20
	}
}
