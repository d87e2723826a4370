package gallery

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Register decoders for dimension reads of source assets.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"lantern/internal/textutil"
)

// generateCollectionDefaults fills in required collection fields and reports
// whether anything changed.
func generateCollectionDefaults(collection *Collection, now time.Time) bool {
	metadata := &collection.Metadata
	changed := false

	if metadata.Title == "" {
		metadata.Title = textutil.TitleFromStem(collection.ID)
		changed = true
	}
	if metadata.CreatedAt == nil {
		metadata.CreatedAt = &now
		changed = true
	}
	if changed {
		metadata.UpdatedAt = &now
	} else if metadata.UpdatedAt == nil {
		metadata.UpdatedAt = &now
		changed = true
	}
	return changed
}

// generateImageMetadata populates missing image fields: identity, generated
// text defaults, stem-derived tags, file stats, content hash, and pixel
// dimensions. It marks the image changed when anything was filled in.
func (m *Manager) generateImageMetadata(image *Image, collection *Collection, now time.Time) error {
	metadata := &image.Metadata
	changed := false

	filename := filepath.Base(image.SourcePath)
	if metadata.Filename != filename {
		metadata.Filename = filename
		changed = true
	}
	if metadata.CollectionID != collection.ID {
		metadata.CollectionID = collection.ID
		changed = true
	}

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	autoTitle := textutil.TitleFromStem(stem)
	if metadata.Title == "" {
		metadata.Title = autoTitle
		changed = true
	}
	if metadata.AltRaw == "" {
		metadata.AltRaw = autoTitle
		changed = true
	}
	if metadata.AltText == "" {
		metadata.AltText = metadata.AltRaw
		changed = true
	}
	if metadata.DescriptionRaw == "" {
		metadata.DescriptionRaw = fmt.Sprintf("%s from %s", metadata.AltRaw, collection.Metadata.Title)
		changed = true
	}
	if metadata.Description == "" {
		metadata.Description = metadata.DescriptionRaw
		changed = true
	}
	if metadata.CaptionRaw == "" {
		metadata.CaptionRaw = metadata.DescriptionRaw
		changed = true
	}
	if metadata.Caption == "" {
		metadata.Caption = metadata.CaptionRaw
		changed = true
	}

	if len(metadata.TagsRaw) == 0 {
		tags := append([]string{}, collection.Metadata.Tags...)
		tags = append(tags, textutil.TagTokens(stem)...)
		metadata.TagsRaw = textutil.DedupTags(tags)
		changed = true
	}
	if len(metadata.Tags) == 0 {
		metadata.Tags = textutil.DedupTags(metadata.TagsRaw)
		changed = true
	}

	if metadata.Derived[DerivedOriginal] == "" {
		metadata.Derived[DerivedOriginal] = fmt.Sprintf("gallery/%s/%s", collection.ID, filename)
		changed = true
	}

	info, err := os.Stat(image.SourcePath)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if metadata.Filesize != info.Size() {
		metadata.Filesize = info.Size()
		changed = true
	}
	modified := info.ModTime().UTC()
	if metadata.CreatedAt == nil {
		metadata.CreatedAt = &modified
		changed = true
	}
	if metadata.ModifiedAt == nil || !metadata.ModifiedAt.Equal(modified) {
		metadata.ModifiedAt = &modified
		changed = true
	}

	digest, err := m.hasher.HashFile(image.SourcePath)
	if err != nil {
		return fmt.Errorf("hash source: %w", err)
	}
	if metadata.Hash != digest {
		metadata.Hash = digest
		changed = true
	}

	if width, height, err := sourceDimensions(image.SourcePath); err == nil {
		if metadata.Width != width {
			metadata.Width = width
			changed = true
		}
		if metadata.Height != height {
			metadata.Height = height
			changed = true
		}
	}

	metadata.LastGeneratedAt = &now
	if changed {
		image.Changed = true
	}
	return nil
}

func sourceDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
