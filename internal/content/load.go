package content

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"lantern/internal/logging"
)

// frontMatterDelimiter separates TOML front matter from the document body.
var frontMatterDelimiter = []byte("+++")

type frontMatter struct {
	Slug      string            `toml:"slug"`
	Title     string            `toml:"title"`
	HeroMedia *mediaRefPayload  `toml:"hero_media"`
	Media     []mediaRefPayload `toml:"media"`
}

type mediaRefPayload struct {
	Path string `toml:"path"`
	Alt  string `toml:"alt_text"`
}

// LoadDocuments scans the content tree for markdown documents and extracts
// their media references from TOML front matter. Files without front matter
// load as documents with no media. A file with unparseable front matter is
// skipped with a warning; it never fails the build.
func LoadDocuments(contentDir string, logger *slog.Logger) ([]Document, error) {
	componentLogger := logging.NewComponentLogger(logger, "content")

	var paths []string
	err := filepath.WalkDir(contentDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != contentDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan content tree: %w", err)
	}
	sort.Strings(paths)

	documents := make([]Document, 0, len(paths))
	for _, path := range paths {
		document, err := loadDocument(contentDir, path)
		if err != nil {
			logging.WarnWithImpact(componentLogger, "skipping document with invalid front matter",
				"its media references are excluded from this build",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		documents = append(documents, document)
	}
	return documents, nil
}

func loadDocument(contentDir, path string) (Document, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	document := Document{Slug: defaultSlug(contentDir, path)}

	matter, ok := extractFrontMatter(payload)
	if !ok {
		return document, nil
	}

	var parsed frontMatter
	if err := toml.Unmarshal(matter, &parsed); err != nil {
		return Document{}, fmt.Errorf("parse front matter: %w", err)
	}
	if parsed.Slug != "" {
		document.Slug = strings.ToLower(strings.TrimSpace(parsed.Slug))
	}
	if parsed.HeroMedia != nil && parsed.HeroMedia.Path != "" {
		document.Hero = &MediaReference{Path: parsed.HeroMedia.Path, Alt: parsed.HeroMedia.Alt}
	}
	for _, ref := range parsed.Media {
		if ref.Path == "" {
			continue
		}
		document.Assets = append(document.Assets, MediaReference{Path: ref.Path, Alt: ref.Alt})
	}
	return document, nil
}

// extractFrontMatter returns the TOML block between the leading +++ fences.
func extractFrontMatter(payload []byte) ([]byte, bool) {
	trimmed := bytes.TrimLeft(payload, "\r\n \t")
	if !bytes.HasPrefix(trimmed, frontMatterDelimiter) {
		return nil, false
	}
	rest := trimmed[len(frontMatterDelimiter):]
	end := bytes.Index(rest, frontMatterDelimiter)
	if end < 0 {
		return nil, false
	}
	return rest[:end], true
}

func defaultSlug(contentDir, path string) string {
	rel, err := filepath.Rel(contentDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ToLower(rel)
}
