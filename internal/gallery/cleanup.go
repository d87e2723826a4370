package gallery

import (
	"strings"
	"time"

	"lantern/internal/textutil"
)

// tagStopwords never survive cleanup; they carry no search value.
var tagStopwords = map[string]struct{}{
	"image":   {},
	"photo":   {},
	"picture": {},
}

// cleanupMetadata normalizes generated text and tags: trims and capitalizes
// sentences, guarantees the description ends a sentence, drops stopword and
// duplicate tags. Each pass that changes anything bumps the revision counter.
func cleanupMetadata(metadata *ImageMetadata, now time.Time) bool {
	changed := false

	if cleaned := textutil.CleanSentence(metadata.AltText, metadata.Title, false); cleaned != metadata.AltText {
		metadata.AltText = cleaned
		changed = true
	}
	if cleaned := textutil.CleanSentence(metadata.Description, metadata.AltText, true); cleaned != metadata.Description {
		metadata.Description = cleaned
		changed = true
	}
	if cleaned := textutil.CleanSentence(metadata.Caption, metadata.Description, false); cleaned != metadata.Caption {
		metadata.Caption = cleaned
		changed = true
	}

	source := metadata.Tags
	if len(source) == 0 {
		source = metadata.TagsRaw
	}
	cleaned := cleanTags(source)
	if !equalStrings(cleaned, metadata.Tags) {
		metadata.Tags = cleaned
		changed = true
	}

	if changed {
		metadata.CleanupRevision++
		metadata.CleanupUpdatedAt = &now
	}
	return changed
}

// cleanTags dedupes case-insensitively and formats each surviving tag:
// multi-word tags are title-cased, hyphenated tags stay lowercase, single
// words are capitalized.
func cleanTags(tags []string) []string {
	deduped := textutil.DedupTags(tags)
	cleaned := make([]string, 0, len(deduped))
	for _, tag := range deduped {
		if _, ok := tagStopwords[tag]; ok {
			continue
		}
		cleaned = append(cleaned, formatTag(tag))
	}
	return cleaned
}

func formatTag(tag string) string {
	switch {
	case strings.Contains(tag, " "):
		return textutil.TitleFromStem(tag)
	case strings.Contains(tag, "-"):
		return strings.ToLower(tag)
	default:
		return strings.ToUpper(tag[:1]) + tag[1:]
	}
}
