package extraction

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/altai-labs/magellan/internal/providers"
)

var codeFenceRe = regexp.MustCompile("```(?:json)?\\s*")

// stripCodeFences removes markdown code fencing the model may wrap around a
// JSON payload despite instructions not to.
func stripCodeFences(s string) string {
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
}

// extractJSONObject slices from the first '{' to the last '}' so that any
// prose around the payload is discarded before decoding.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

func decodeStringList(text, source, key string) ([]string, error) {
	cleaned := stripCodeFences(text)
	obj, ok := extractJSONObject(cleaned)
	if !ok {
		return nil, &providers.ParseError{Source: source, Reason: "no JSON object found"}
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, &providers.ParseError{Source: source, Reason: "invalid JSON", Err: err}
	}

	raw, ok := payload[key]
	if !ok {
		return nil, &providers.ParseError{Source: source, Reason: "missing " + quoted(key) + " field"}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &providers.ParseError{Source: source, Reason: quoted(key) + " is not a list"}
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, &providers.ParseError{Source: source, Reason: "empty " + quoted(key) + " list"}
	}
	return out, nil
}

func quoted(key string) string { return `"` + key + `"` }

// MaterialList decodes a {"raw_materials": [...]} payload into trimmed,
// non-empty material names. Any malformed payload yields a ParseError; the
// caller applies its deterministic fallback exactly once and never
// re-invokes the model for the same failure.
func MaterialList(text string) ([]string, error) {
	return decodeStringList(text, "materials", "raw_materials")
}

// CountryList decodes a {"countries": [...]} payload, capped at max
// entries. Responses that ignored the JSON instruction get one more
// chance as a bulleted or numbered list before the caller reaches for
// its static table.
func CountryList(text string, max int) ([]string, error) {
	countries, err := decodeStringList(text, "countries", "countries")
	if err != nil {
		if items := bulletItems(text, max); len(items) > 0 {
			return items, nil
		}
		return nil, err
	}
	if max > 0 && len(countries) > max {
		countries = countries[:max]
	}
	return countries, nil
}

var bulletRe = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-*•]\s*)(.+)$`)

// bulletItems recovers entries from a numbered or bulleted list.
func bulletItems(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := strings.Trim(strings.TrimSpace(m[1]), `"'.,`)
		if len(item) <= 2 {
			continue
		}
		out = append(out, item)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
