package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lantern/internal/config"
	"lantern/internal/fileutil"
	"lantern/internal/logging"
	"lantern/internal/textutil"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
	".tiff": {},
	".bmp":  {},
}

// Image pairs a source asset with its sidecar. SidecarExisted is captured at
// load time and never changes afterwards; it is what protects manual edits
// from being overwritten by later stages.
type Image struct {
	CollectionID   string
	SourcePath     string
	SidecarPath    string
	SidecarExisted bool
	Metadata       ImageMetadata
	RawPayload     []byte
	Changed        bool
}

// Collection is one gallery directory with its sidecar and images.
type Collection struct {
	ID             string
	Directory      string
	SidecarPath    string
	SidecarExisted bool
	Metadata       CollectionMetadata
	RawPayload     []byte
	Changed        bool
	Images         []*Image
	Warnings       []string
}

// CoverImage returns the configured cover, falling back to the hero image and
// then the first image.
func (c *Collection) CoverImage() *Image {
	if len(c.Images) == 0 {
		return nil
	}
	target := c.Metadata.CoverImageID
	if target == "" {
		target = c.Metadata.HeroImageID
	}
	if target != "" {
		for _, image := range c.Images {
			if image.Metadata.ID == target {
				return image
			}
		}
	}
	return c.Images[0]
}

// Workspace aggregates the loaded collections and everything the run wrote.
type Workspace struct {
	Root             string
	Collections      []*Collection
	Warnings         []string
	Errors           []string
	CollectionWrites []string
	ImageWrites      []string
	DataWrites       []string
}

// Images iterates every image across all collections in load order.
func (w *Workspace) Images() []*Image {
	var images []*Image
	for _, collection := range w.Collections {
		images = append(images, collection.Images...)
	}
	return images
}

// ImageCount returns the total number of images in the workspace.
func (w *Workspace) ImageCount() int {
	total := 0
	for _, collection := range w.Collections {
		total += len(collection.Images)
	}
	return total
}

func (w *Workspace) addWarning(message string) {
	w.Warnings = append(w.Warnings, message)
}

// Manager runs the sidecar lifecycle over the gallery source tree.
type Manager struct {
	sourceDir          string
	collectionFilename string
	sidecarExtension   string
	cleanup            bool
	profileMap         map[string]string
	derivedRoot        string
	outputRoot         string
	hasher             *fileutil.Hasher
	annotator          Annotator
	logger             *slog.Logger
	now                func() time.Time
}

// NewManager builds a gallery manager. The hasher is shared per run so image
// content digests are computed at most once. The annotator is optional; nil
// skips the annotation stage.
func NewManager(cfg *config.Config, hasher *fileutil.Hasher, annotator Annotator, logger *slog.Logger) *Manager {
	return &Manager{
		sourceDir:          cfg.Gallery.SourceDir,
		collectionFilename: cfg.Gallery.CollectionFilename,
		sidecarExtension:   cfg.Gallery.SidecarExtension,
		cleanup:            cfg.Gallery.Cleanup,
		profileMap:         cfg.Gallery.ProfileMap,
		derivedRoot:        cfg.DerivedRoot(),
		outputRoot:         cfg.Paths.OutputDir,
		hasher:             hasher,
		annotator:          annotator,
		logger:             logging.NewComponentLogger(logger, "gallery"),
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// Load discovers collections and their sidecars without generating metadata
// or writing anything. Plan-style operations use it to see gallery references
// with no side effects.
func (m *Manager) Load(ctx context.Context) (*Workspace, error) {
	workspace := &Workspace{Root: m.sourceDir}

	if _, err := os.Stat(m.sourceDir); err != nil {
		m.logger.Info("gallery source directory missing, skipping",
			logging.String("path", m.sourceDir))
		return workspace, nil
	}

	entries, err := os.ReadDir(m.sourceDir)
	if err != nil {
		return nil, fmt.Errorf("read gallery root: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		collection, err := m.loadCollection(filepath.Join(m.sourceDir, entry.Name()))
		if err != nil {
			workspace.Errors = append(workspace.Errors,
				fmt.Sprintf("failed to load collection %s: %v", entry.Name(), err))
			continue
		}
		workspace.Collections = append(workspace.Collections, collection)
	}
	return workspace, nil
}

// Prepare discovers collections, fills in missing metadata, annotates and
// cleans up new sidecars, and persists the results. With refresh set,
// existing sidecars are regenerated and rewritten as well.
func (m *Manager) Prepare(ctx context.Context, refresh bool) (*Workspace, error) {
	workspace, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	for _, collection := range workspace.Collections {
		if !collection.SidecarExisted || refresh {
			if generateCollectionDefaults(collection, now) {
				collection.Changed = true
			}
		}
		for _, image := range collection.Images {
			if !image.SidecarExisted || refresh {
				if err := m.generateImageMetadata(image, collection, now); err != nil {
					workspace.addWarning(fmt.Sprintf("metadata generation failed for %s: %v",
						image.Metadata.Filename, err))
				}
			}
		}
		if m.annotator != nil {
			for _, image := range collection.Images {
				if image.SidecarExisted && !refresh {
					continue
				}
				if err := m.annotate(ctx, image, now); err != nil {
					message := fmt.Sprintf("annotation failed for %s: %v",
						image.Metadata.Filename, err)
					logging.WarnWithImpact(m.logger, "annotation failed",
						"sidecar keeps its generated defaults",
						logging.String("image", image.Metadata.Filename),
						logging.Error(err),
					)
					workspace.addWarning(message)
					image.Metadata.Notes = append(image.Metadata.Notes, message)
					image.Changed = true
				}
			}
		}
		if m.cleanup {
			for _, image := range collection.Images {
				if image.SidecarExisted && !refresh {
					continue
				}
				if cleanupMetadata(&image.Metadata, now) {
					image.Changed = true
				}
			}
		}
	}

	if err := m.Persist(workspace, refresh); err != nil {
		return nil, err
	}
	return workspace, nil
}

// loadCollection reads one collection directory. An invalid sidecar is
// reported and treated as empty so the collection still loads.
func (m *Manager) loadCollection(directory string) (*Collection, error) {
	collectionID := filepath.Base(directory)
	sidecarPath := filepath.Join(directory, m.collectionFilename)

	raw, existed, err := m.readSidecar(sidecarPath)
	if err != nil {
		return nil, err
	}

	collection := &Collection{
		ID:             collectionID,
		Directory:      directory,
		SidecarPath:    sidecarPath,
		SidecarExisted: existed,
		RawPayload:     raw,
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &collection.Metadata); err != nil {
			logging.WarnWithImpact(m.logger, "invalid collection sidecar",
				"sidecar treated as empty and regenerated in memory",
				logging.String("path", sidecarPath),
				logging.Error(err),
			)
			collection.Warnings = append(collection.Warnings,
				fmt.Sprintf("invalid sidecar %s: %v", sidecarPath, err))
			collection.Metadata = CollectionMetadata{}
			collection.RawPayload = nil
		}
	}
	if collection.Metadata.Version == 0 {
		collection.Metadata.Version = metadataVersion
	}
	if collection.Metadata.ID == "" {
		collection.Metadata.ID = collectionID
	}
	if collection.Metadata.Title == "" {
		collection.Metadata.Title = textutil.TitleFromStem(collectionID)
	}
	if collection.Metadata.Tags == nil {
		collection.Metadata.Tags = []string{}
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("read collection directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		image, err := m.loadImage(filepath.Join(directory, entry.Name()), collection)
		if err != nil {
			collection.Warnings = append(collection.Warnings,
				fmt.Sprintf("failed to load image %s: %v", entry.Name(), err))
			continue
		}
		collection.Images = append(collection.Images, image)
	}
	sort.Slice(collection.Images, func(i, j int) bool {
		return strings.ToLower(collection.Images[i].Metadata.Filename) <
			strings.ToLower(collection.Images[j].Metadata.Filename)
	})
	return collection, nil
}

func (m *Manager) loadImage(sourcePath string, collection *Collection) (*Image, error) {
	filename := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	sidecarPath := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + m.sidecarExtension

	raw, existed, err := m.readSidecar(sidecarPath)
	if err != nil {
		return nil, err
	}

	image := &Image{
		CollectionID:   collection.ID,
		SourcePath:     sourcePath,
		SidecarPath:    sidecarPath,
		SidecarExisted: existed,
		RawPayload:     raw,
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &image.Metadata); err != nil {
			logging.WarnWithImpact(m.logger, "invalid image sidecar",
				"sidecar treated as empty and regenerated in memory",
				logging.String("path", sidecarPath),
				logging.Error(err),
			)
			image.Metadata = ImageMetadata{}
			image.RawPayload = nil
		}
	}

	metadata := &image.Metadata
	if metadata.Version == 0 {
		metadata.Version = metadataVersion
	}
	if metadata.ID == "" {
		metadata.ID = stem
	}
	if metadata.CollectionID == "" {
		metadata.CollectionID = collection.ID
	}
	if metadata.Filename == "" {
		metadata.Filename = filename
	}
	if metadata.Title == "" {
		metadata.Title = textutil.TitleFromStem(stem)
	}
	if metadata.AltText == "" {
		metadata.AltText = metadata.Title
	}
	if metadata.Tags == nil {
		metadata.Tags = []string{}
	}
	if metadata.TagsRaw == nil {
		metadata.TagsRaw = []string{}
	}
	if metadata.Derived == nil {
		metadata.Derived = make(map[string]string)
	}
	image.CollectionID = metadata.CollectionID
	return image, nil
}

// readSidecar returns the raw payload and whether the file existed. Existence
// is decided here, before anything can write the file, so the lifecycle flags
// reflect the state at load time.
func (m *Manager) readSidecar(path string) ([]byte, bool, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read sidecar: %w", err)
	}
	return payload, true, nil
}

// Persist writes mutated sidecars back to disk. A sidecar is written only
// when its serialized form differs from what was loaded or the entry is
// explicitly marked changed, and only when it did not exist at load time or a
// refresh was requested.
func (m *Manager) Persist(workspace *Workspace, refresh bool) error {
	for _, collection := range workspace.Collections {
		if collection.SidecarExisted && !refresh {
			continue
		}
		payload, err := json.MarshalIndent(collection.Metadata, "", "  ")
		if err != nil {
			return fmt.Errorf("serialize collection sidecar: %w", err)
		}
		if !collection.Changed && jsonEqual(payload, collection.RawPayload) {
			continue
		}
		if err := writeSidecar(collection.SidecarPath, payload); err != nil {
			return err
		}
		collection.RawPayload = payload
		collection.Changed = false
		workspace.CollectionWrites = append(workspace.CollectionWrites, collection.SidecarPath)
	}

	for _, image := range workspace.Images() {
		if image.SidecarExisted && !refresh {
			continue
		}
		payload, err := json.MarshalIndent(image.Metadata, "", "  ")
		if err != nil {
			return fmt.Errorf("serialize image sidecar: %w", err)
		}
		if !image.Changed && jsonEqual(payload, image.RawPayload) {
			continue
		}
		if err := writeSidecar(image.SidecarPath, payload); err != nil {
			return err
		}
		image.RawPayload = payload
		image.Changed = false
		workspace.ImageWrites = append(workspace.ImageWrites, image.SidecarPath)
	}
	return nil
}

func writeSidecar(path string, payload []byte) error {
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}
	return nil
}

// jsonEqual compares two JSON payloads structurally so formatting differences
// in hand-edited files do not count as changes.
func jsonEqual(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == 0 && len(b) == 0
	}
	var left, right any
	if err := json.Unmarshal(a, &left); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false
	}
	return deepEqualJSON(left, right)
}

func deepEqualJSON(a, b any) bool {
	switch left := a.(type) {
	case map[string]any:
		right, ok := b.(map[string]any)
		if !ok || len(left) != len(right) {
			return false
		}
		for key, value := range left {
			other, ok := right[key]
			if !ok || !deepEqualJSON(value, other) {
				return false
			}
		}
		return true
	case []any:
		right, ok := b.([]any)
		if !ok || len(left) != len(right) {
			return false
		}
		for i := range left {
			if !deepEqualJSON(left[i], right[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
