package genai

import (
	"errors"
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareObjectRe  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ErrNoJSON is returned when a model response contains no JSON object at all.
var ErrNoJSON = errors.New("no JSON object found in response")

// ExtractJSON pulls the JSON object out of a model response. A fenced
// ```json block wins; otherwise the whole response is scanned for the first
// object. Models routinely wrap JSON in prose, so both shapes must work.
func ExtractJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoJSON
	}

	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}

	if m := bareObjectRe.FindString(raw); m != "" {
		return m, nil
	}

	return "", ErrNoJSON
}
