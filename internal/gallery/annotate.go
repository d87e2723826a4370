package gallery

import (
	"context"
	"time"
)

// Annotation is what an annotator produced for one image. Empty fields leave
// the corresponding metadata untouched.
type Annotation struct {
	AltText   string
	Caption   string
	Tags      []string
	TagScores map[string]float64
}

// Annotator generates descriptive metadata for an image file. Implementations
// return (nil, nil) when they have nothing to contribute.
type Annotator interface {
	// Annotate inspects the image at sourcePath.
	Annotate(ctx context.Context, sourcePath string) (*Annotation, error)
	// Signature identifies the annotator version. A sidecar annotated with
	// the same signature over the same source hash is not re-annotated.
	Signature() string
}

// annotate applies the annotator's output to an image's metadata, honoring
// manual overrides and skipping images whose annotation inputs are unchanged.
func (m *Manager) annotate(ctx context.Context, image *Image, now time.Time) error {
	metadata := &image.Metadata
	signature := m.annotator.Signature()

	if signature != "" && metadata.Hash != "" &&
		metadata.AnnotationSignature == signature &&
		metadata.AnnotationSourceHash == metadata.Hash {
		return nil
	}

	annotation, err := m.annotator.Annotate(ctx, image.SourcePath)
	if err != nil {
		return err
	}
	if annotation == nil {
		return nil
	}

	changed := false
	setText := func(field string, target *string, value string, honorManual bool) {
		if value == "" {
			return
		}
		if honorManual && metadata.ManuallyOverridden(field) {
			return
		}
		if *target != value {
			*target = value
			changed = true
		}
	}

	setText("alt_raw", &metadata.AltRaw, annotation.AltText, true)
	setText("alt_text", &metadata.AltText, annotation.AltText, false)
	setText("description_raw", &metadata.DescriptionRaw, annotation.Caption, true)
	setText("description", &metadata.Description, annotation.Caption, true)
	setText("caption_raw", &metadata.CaptionRaw, annotation.Caption, true)
	setText("caption", &metadata.Caption, annotation.Caption, true)

	if len(annotation.Tags) > 0 {
		tags := append([]string{}, annotation.Tags...)
		if !metadata.ManuallyOverridden("tags_raw") && !equalStrings(metadata.TagsRaw, tags) {
			metadata.TagsRaw = tags
			changed = true
		}
		if !metadata.ManuallyOverridden("tags") && !equalStrings(metadata.Tags, tags) {
			metadata.Tags = append([]string{}, tags...)
			changed = true
		}
	}
	if len(annotation.TagScores) > 0 {
		metadata.TagScores = annotation.TagScores
		changed = true
	}

	if metadata.Hash != "" && metadata.AnnotationSourceHash != metadata.Hash {
		metadata.AnnotationSourceHash = metadata.Hash
		changed = true
	}
	if signature != "" && metadata.AnnotationSignature != signature {
		metadata.AnnotationSignature = signature
		changed = true
	}

	metadata.AnnotationGeneratedAt = &now
	metadata.LastGeneratedAt = &now
	if changed {
		image.Changed = true
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
