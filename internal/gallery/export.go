package gallery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// dataSubdir is where exported datasets land under the output root.
const dataSubdir = "gallery/data"

// ImageRecord is the flattened per-image record exported to JSONL for the
// front-end.
type ImageRecord struct {
	Version      int        `json:"version"`
	ID           string     `json:"id"`
	CollectionID string     `json:"collection_id"`
	Title        string     `json:"title"`
	Alt          string     `json:"alt"`
	Caption      string     `json:"caption,omitempty"`
	Description  string     `json:"description,omitempty"`
	Tags         []string   `json:"tags"`
	CapturedAt   *time.Time `json:"captured_at,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
	Src          string     `json:"src,omitempty"`
	Thumbnail    string     `json:"thumbnail,omitempty"`
	Original     string     `json:"original,omitempty"`
	Download     string     `json:"download,omitempty"`
	Revision     int        `json:"llm_revision"`
	Checksum     string     `json:"checksum,omitempty"`
	GeneratedAt  string     `json:"generated_at"`
}

func recordFromImage(image *Image, timestamp string) ImageRecord {
	metadata := &image.Metadata
	download := metadata.Derived[DerivedDownload]
	if download == "" {
		download = metadata.Derived[DerivedOriginal]
	}
	return ImageRecord{
		Version:      metadataVersion,
		ID:           metadata.ID,
		CollectionID: metadata.CollectionID,
		Title:        metadata.Title,
		Alt:          metadata.AltText,
		Caption:      metadata.Caption,
		Description:  metadata.Description,
		Tags:         metadata.Tags,
		CapturedAt:   metadata.CapturedAt,
		CreatedAt:    metadata.CreatedAt,
		Width:        metadata.Width,
		Height:       metadata.Height,
		Src:          metadata.Derived[DerivedWeb],
		Thumbnail:    metadata.Derived[DerivedThumbnail],
		Original:     metadata.Derived[DerivedOriginal],
		Download:     download,
		Revision:     metadata.CleanupRevision,
		Checksum:     metadata.Hash,
		GeneratedAt:  timestamp,
	}
}

// ExportDatasets writes the JSON and JSONL datasets the front-end consumes:
// a per-collection JSONL, a combined images.jsonl, collections.json, and
// manifest.json. Files under the data directory not written by this run are
// removed so the dataset tree mirrors the workspace exactly.
func (m *Manager) ExportDatasets(workspace *Workspace) error {
	dataRoot := filepath.Join(m.outputRoot, filepath.FromSlash(dataSubdir))
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}

	existing := make(map[string]struct{})
	_ = filepath.WalkDir(dataRoot, func(path string, entry os.DirEntry, err error) error {
		if err == nil && !entry.IsDir() {
			existing[path] = struct{}{}
		}
		return nil
	})

	timestamp := m.now().Format(time.RFC3339)

	collections := append([]*Collection{}, workspace.Collections...)
	sort.SliceStable(collections, func(i, j int) bool {
		return collections[i].Metadata.SortOrder < collections[j].Metadata.SortOrder
	})

	var combined bytes.Buffer
	collectionsPayload := map[string]any{
		"version":      metadataVersion,
		"generated_at": timestamp,
		"collections":  []any{},
	}
	var collectionEntries []any

	for _, collection := range collections {
		var lines bytes.Buffer
		for _, image := range collection.Images {
			record := recordFromImage(image, timestamp)
			line, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("serialize image record: %w", err)
			}
			lines.Write(line)
			lines.WriteByte('\n')
		}
		combined.Write(lines.Bytes())

		jsonlPath := filepath.Join(dataRoot, collection.ID+".jsonl")
		if err := os.WriteFile(jsonlPath, lines.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write collection dataset: %w", err)
		}
		workspace.DataWrites = append(workspace.DataWrites, jsonlPath)
		delete(existing, jsonlPath)

		collectionEntries = append(collectionEntries, collectionPayload(collection))
	}
	if collectionEntries != nil {
		collectionsPayload["collections"] = collectionEntries
	}

	globalPath := filepath.Join(dataRoot, "images.jsonl")
	if err := os.WriteFile(globalPath, combined.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write combined dataset: %w", err)
	}
	workspace.DataWrites = append(workspace.DataWrites, globalPath)
	delete(existing, globalPath)

	manifest := map[string]any{
		"version":      metadataVersion,
		"generated_at": timestamp,
		"collections":  len(workspace.Collections),
		"images":       workspace.ImageCount(),
		"warnings":     workspace.Warnings,
		"errors":       workspace.Errors,
	}
	for name, payload := range map[string]any{
		"collections.json": collectionsPayload,
		"manifest.json":    manifest,
	} {
		path := filepath.Join(dataRoot, name)
		encoded, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("serialize %s: %w", name, err)
		}
		if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		workspace.DataWrites = append(workspace.DataWrites, path)
		delete(existing, path)
	}

	leftovers := make([]string, 0, len(existing))
	for path := range existing {
		leftovers = append(leftovers, path)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(leftovers)))
	for _, leftover := range leftovers {
		_ = os.Remove(leftover)
	}
	removeEmptyDirs(dataRoot)
	return nil
}

func collectionPayload(collection *Collection) map[string]any {
	var cover map[string]any
	if image := collection.CoverImage(); image != nil {
		cover = map[string]any{
			"id":        image.Metadata.ID,
			"title":     image.Metadata.Title,
			"alt":       image.Metadata.AltText,
			"thumbnail": image.Metadata.Derived[DerivedThumbnail],
			"src":       image.Metadata.Derived[DerivedWeb],
		}
	}
	return map[string]any{
		"id":          collection.Metadata.ID,
		"title":       collection.Metadata.Title,
		"summary":     collection.Metadata.Summary,
		"description": collection.Metadata.Description,
		"tags":        collection.Metadata.Tags,
		"sort_order":  collection.Metadata.SortOrder,
		"image_count": len(collection.Images),
		"data_path":   collection.ID + ".jsonl",
		"cover":       cover,
		"options":     collection.Metadata.Options,
	}
}

func removeEmptyDirs(root string) {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err == nil && entry.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}
}
