package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
strategy:
  existing_recipe_weight: 70
  new_idea_weight: 15
  explore_weight: 15

notifications:
  weekly_suggestion:
    enabled: true
    default_title: "Dinner inspiration"
    default_body: "How about {RECIPE_NAME}?"
    default_emoji: "🍽️"
    deep_link_base: "plateful://recipes"
    chat_prompt_link_base: "plateful://chat?prompt="
    prompts:
      idea: "Suggest a dish for {USER_NAME}."
    experiment:
      experiment_id: "exp-1"
      is_active: true
      variants:
        - variant_id: "a"
          weight: 50
          title: "Hungry?"
        - variant_id: "b"
          weight: 50
`

func TestLoadConfigFile(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, LoadConfigFile(strings.NewReader(sampleYAML), cfg))

	assert.Equal(t, 70, cfg.Strategy.ExistingRecipeWeight)

	nt := cfg.Notifications["weekly_suggestion"]
	require.NotNil(t, nt)
	assert.True(t, nt.Enabled)
	assert.Equal(t, "How about {RECIPE_NAME}?", nt.DefaultBody)
	assert.Equal(t, "Suggest a dish for {USER_NAME}.", nt.Prompt(PromptStageIdea))
	assert.Empty(t, nt.Prompt(PromptStageSurprise))

	require.NotNil(t, nt.Experiment)
	assert.Len(t, nt.Experiment.Variants, 2)
	assert.Equal(t, "exp-1", nt.Experiment.ExperimentID)
}

func TestStrategyConfigDefaults(t *testing.T) {
	var s StrategyConfig
	s.applyDefaults()
	assert.Equal(t, 60, s.ExistingRecipeWeight)
	assert.Equal(t, 20, s.NewIdeaWeight)
	assert.Equal(t, 20, s.ExploreWeight)

	custom := StrategyConfig{ExistingRecipeWeight: 80, NewIdeaWeight: 10, ExploreWeight: 10}
	custom.applyDefaults()
	assert.Equal(t, 80, custom.ExistingRecipeWeight, "explicit weights are never overridden")
}

func TestNotificationTypeValidate(t *testing.T) {
	nt := &NotificationTypeConfig{DefaultTitle: "t", DefaultBody: "b", DeepLinkBase: "plateful://x"}
	assert.NoError(t, nt.validate())

	missing := &NotificationTypeConfig{DefaultTitle: "t"}
	assert.Error(t, missing.validate())
}
