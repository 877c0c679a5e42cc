package content

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([A-Z0-9_]+)\}`)

// RenderTemplate substitutes {PLACEHOLDER} tokens from data. Unknown
// placeholders resolve to the empty string — a literal {MEAL_TYPE} must never
// reach a user's lock screen.
func RenderTemplate(template string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		return data[key]
	})
}
