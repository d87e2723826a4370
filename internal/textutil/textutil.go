package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	stemSeparators = regexp.MustCompile(`[-_.]+`)
	titleCaser     = cases.Title(language.English)
)

// TitleFromStem converts a filename stem like "sunset_over-bay" into a
// display title ("Sunset Over Bay"). Numeric-only chunks are kept as-is.
func TitleFromStem(stem string) string {
	cleaned := stemSeparators.ReplaceAllString(strings.TrimSpace(stem), " ")
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	for i, field := range fields {
		if isDigits(field) {
			continue
		}
		fields[i] = titleCaser.String(strings.ToLower(field))
	}
	return strings.Join(fields, " ")
}

// TagTokens extracts lowercase tag candidates from a filename stem,
// discarding purely numeric chunks.
func TagTokens(stem string) []string {
	cleaned := stemSeparators.ReplaceAllString(strings.ToLower(stem), " ")
	tokens := make([]string, 0, 4)
	for _, field := range strings.Fields(cleaned) {
		if isDigits(field) {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// DedupTags returns tags trimmed, lowercased, and de-duplicated while
// preserving first-seen order. Empty entries are dropped.
func DedupTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := strings.ToLower(strings.TrimSpace(tag))
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		result = append(result, cleaned)
	}
	return result
}

// CleanSentence trims a sentence, upcases its first letter, and optionally
// guarantees terminal punctuation. Empty input falls back to the provided
// fallback before cleaning.
func CleanSentence(text, fallback string, ensurePeriod bool) string {
	candidate := strings.TrimSpace(text)
	if candidate == "" {
		candidate = strings.TrimSpace(fallback)
	}
	if candidate == "" {
		return ""
	}
	runes := []rune(candidate)
	runes[0] = unicode.ToUpper(runes[0])
	candidate = string(runes)
	if ensurePeriod && !strings.HasSuffix(candidate, ".") &&
		!strings.HasSuffix(candidate, "!") && !strings.HasSuffix(candidate, "?") {
		candidate += "."
	}
	return candidate
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
