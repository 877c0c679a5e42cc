package genai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONFencedBlock(t *testing.T) {
	raw := "Here is your notification:\n```json\n{\"title\": \"Taco Night\", \"body\": \"Time to cook\"}\n```\nEnjoy!"

	got, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "Taco Night", "body": "Time to cook"}`, got)
}

func TestExtractJSONFenceWithoutLanguage(t *testing.T) {
	raw := "```\n{\"title\": \"Soup\"}\n```"

	got, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "Soup"}`, got)
}

func TestExtractJSONWholeResponse(t *testing.T) {
	raw := `{"title": "Pasta", "body": "Twirl it", "emoji": "🍝"}`

	got, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, raw, got)
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	raw := `Sure! {"title": "Bread", "body": "Bake today"} hope that helps`

	got, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "Bread", "body": "Bake today"}`, got)
}

func TestExtractJSONNoObject(t *testing.T) {
	for _, raw := range []string{"", "   ", "I could not generate a notification."} {
		_, err := ExtractJSON(raw)
		assert.ErrorIs(t, err, ErrNoJSON)
	}
}
