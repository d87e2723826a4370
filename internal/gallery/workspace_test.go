package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lantern/internal/config"
	"lantern/internal/fileutil"
	"lantern/internal/logging"
)

func testManager(t *testing.T, annotator Annotator) (*Manager, *config.Config) {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Gallery.SourceDir = filepath.Join(base, "gallery")
	cfg.Gallery.CollectionFilename = "collection.json"
	cfg.Gallery.SidecarExtension = ".json"
	cfg.Gallery.Cleanup = true
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Media.OutputDir = filepath.Join(base, "output", "media", "derived")
	if err := os.MkdirAll(cfg.Gallery.SourceDir, 0o755); err != nil {
		t.Fatalf("create gallery root: %v", err)
	}
	return NewManager(&cfg, fileutil.NewHasher(), annotator, logging.NewNop()), &cfg
}

func writeGalleryImage(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create image directory: %v", err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(60 * y), B: 90, A: 255})
		}
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode image: %v", err)
	}
}

func TestPrepareCreatesSidecarsWithDefaults(t *testing.T) {
	manager, cfg := testManager(t, nil)
	writeGalleryImage(t, filepath.Join(cfg.Gallery.SourceDir, "summer-trip", "sunset_beach.png"))

	workspace, err := manager.Prepare(context.Background(), false)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(workspace.Collections) != 1 {
		t.Fatalf("expected one collection, got %d", len(workspace.Collections))
	}
	collection := workspace.Collections[0]
	if collection.Metadata.Title != "Summer Trip" {
		t.Fatalf("expected generated collection title, got %q", collection.Metadata.Title)
	}
	if len(workspace.CollectionWrites) != 1 || len(workspace.ImageWrites) != 1 {
		t.Fatalf("expected one collection and one image write, got %d and %d",
			len(workspace.CollectionWrites), len(workspace.ImageWrites))
	}

	payload, err := os.ReadFile(collection.Images[0].SidecarPath)
	if err != nil {
		t.Fatalf("read image sidecar: %v", err)
	}
	var metadata ImageMetadata
	if err := json.Unmarshal(payload, &metadata); err != nil {
		t.Fatalf("parse image sidecar: %v", err)
	}
	if metadata.Title != "Sunset Beach" {
		t.Fatalf("expected generated title, got %q", metadata.Title)
	}
	if metadata.AltText == "" || metadata.Description == "" {
		t.Fatalf("expected generated text fields, got %+v", metadata)
	}
	if metadata.Width != 6 || metadata.Height != 4 {
		t.Fatalf("expected recorded dimensions 6x4, got %dx%d", metadata.Width, metadata.Height)
	}
	if metadata.Hash == "" || metadata.Filesize == 0 {
		t.Fatal("expected hash and filesize recorded")
	}
	if metadata.Derived[DerivedOriginal] != "gallery/summer-trip/sunset_beach.png" {
		t.Fatalf("unexpected original derived path %q", metadata.Derived[DerivedOriginal])
	}
	want := []string{"Sunset", "Beach"}
	if !equalStrings(metadata.Tags, want) {
		t.Fatalf("expected cleaned tags %v, got %v", want, metadata.Tags)
	}
}

func TestPrepareNeverRewritesExistingSidecars(t *testing.T) {
	manager, cfg := testManager(t, nil)
	imagePath := filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.png")
	writeGalleryImage(t, imagePath)

	sidecarPath := filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.json")
	manual := []byte(`{"id": "photo", "title": "My Hand-Written Title", "alt_text": "custom alt"}` + "\n")
	if err := os.WriteFile(sidecarPath, manual, 0o644); err != nil {
		t.Fatalf("write manual sidecar: %v", err)
	}
	collectionSidecar := filepath.Join(cfg.Gallery.SourceDir, "trip", "collection.json")
	manualCollection := []byte(`{"id": "trip", "title": "Our Trip"}` + "\n")
	if err := os.WriteFile(collectionSidecar, manualCollection, 0o644); err != nil {
		t.Fatalf("write manual collection sidecar: %v", err)
	}

	workspace, err := manager.Prepare(context.Background(), false)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(workspace.ImageWrites) != 0 || len(workspace.CollectionWrites) != 0 {
		t.Fatalf("expected no writes over existing sidecars, got %v and %v",
			workspace.ImageWrites, workspace.CollectionWrites)
	}

	after, err := os.ReadFile(sidecarPath)
	if err != nil {
		t.Fatalf("reread sidecar: %v", err)
	}
	if !bytes.Equal(after, manual) {
		t.Fatal("existing sidecar must stay byte-identical without refresh")
	}
}

func TestRefreshRegeneratesExistingSidecars(t *testing.T) {
	manager, cfg := testManager(t, nil)
	writeGalleryImage(t, filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.png"))

	sidecarPath := filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.json")
	manual := []byte(`{"id": "photo", "title": "Kept Title", "custom_field": {"a": 1}}`)
	if err := os.WriteFile(sidecarPath, manual, 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	workspace, err := manager.Prepare(context.Background(), true)
	if err != nil {
		t.Fatalf("prepare with refresh: %v", err)
	}
	if len(workspace.ImageWrites) != 1 {
		t.Fatalf("expected refreshed sidecar written, got %v", workspace.ImageWrites)
	}

	payload, err := os.ReadFile(sidecarPath)
	if err != nil {
		t.Fatalf("read refreshed sidecar: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("parse refreshed sidecar: %v", err)
	}
	if string(decoded["title"]) != `"Kept Title"` {
		t.Fatalf("expected present title preserved, got %s", decoded["title"])
	}
	if _, ok := decoded["custom_field"]; !ok {
		t.Fatal("unknown sidecar keys must round-trip on refresh")
	}
	if _, ok := decoded["hash"]; !ok {
		t.Fatal("refresh must fill in generated fields")
	}
}

func TestInvalidSidecarLoadsEmptyButIsNotOverwritten(t *testing.T) {
	manager, cfg := testManager(t, nil)
	writeGalleryImage(t, filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.png"))

	sidecarPath := filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.json")
	broken := []byte(`{"title": "unterminated`)
	if err := os.WriteFile(sidecarPath, broken, 0o644); err != nil {
		t.Fatalf("write broken sidecar: %v", err)
	}

	workspace, err := manager.Prepare(context.Background(), false)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	img := workspace.Collections[0].Images[0]
	if !img.SidecarExisted {
		t.Fatal("existing broken sidecar must still count as existing")
	}
	if img.Metadata.Title == "" {
		t.Fatal("broken sidecar must regenerate metadata in memory")
	}

	after, err := os.ReadFile(sidecarPath)
	if err != nil {
		t.Fatalf("reread sidecar: %v", err)
	}
	if !bytes.Equal(after, broken) {
		t.Fatal("broken sidecar must not be overwritten without refresh")
	}
}

type staticAnnotator struct {
	annotation *Annotation
	calls      int
}

func (a *staticAnnotator) Annotate(ctx context.Context, sourcePath string) (*Annotation, error) {
	a.calls++
	return a.annotation, nil
}

func (a *staticAnnotator) Signature() string { return "static-v1" }

func TestAnnotatorPopulatesMetadata(t *testing.T) {
	annotator := &staticAnnotator{annotation: &Annotation{
		AltText: "a beach at dusk",
		Caption: "waves rolling in at dusk",
		Tags:    []string{"beach", "dusk"},
	}}
	manager, cfg := testManager(t, annotator)
	writeGalleryImage(t, filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.png"))

	workspace, err := manager.Prepare(context.Background(), false)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	metadata := workspace.Collections[0].Images[0].Metadata
	if metadata.AltText != "A beach at dusk" {
		t.Fatalf("expected cleaned annotated alt text, got %q", metadata.AltText)
	}
	if metadata.AnnotationSignature != "static-v1" {
		t.Fatalf("expected annotation signature recorded, got %q", metadata.AnnotationSignature)
	}
	if metadata.AnnotationSourceHash != metadata.Hash {
		t.Fatal("expected annotation source hash to match content hash")
	}
	if !equalStrings(metadata.Tags, []string{"Beach", "Dusk"}) {
		t.Fatalf("expected annotated then cleaned tags, got %v", metadata.Tags)
	}
}

func TestAnnotatorSkipsUnchangedSources(t *testing.T) {
	annotator := &staticAnnotator{annotation: &Annotation{AltText: "annotated"}}
	manager, cfg := testManager(t, annotator)
	writeGalleryImage(t, filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.png"))

	if _, err := manager.Prepare(context.Background(), false); err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	first := annotator.calls

	if _, err := manager.Prepare(context.Background(), true); err != nil {
		t.Fatalf("refresh prepare: %v", err)
	}
	if annotator.calls != first {
		t.Fatalf("expected no re-annotation for unchanged source, calls went %d -> %d",
			first, annotator.calls)
	}
}

func TestManualOverridesBlockAnnotation(t *testing.T) {
	annotator := &staticAnnotator{annotation: &Annotation{
		Caption: "machine caption",
		Tags:    []string{"machine"},
	}}
	manager, cfg := testManager(t, annotator)
	writeGalleryImage(t, filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.png"))

	sidecarPath := filepath.Join(cfg.Gallery.SourceDir, "trip", "photo.json")
	seed := []byte(`{
  "id": "photo",
  "caption": "Human caption",
  "tags": ["Chosen"],
  "manual_overrides": {"caption": true, "tags": true}
}`)
	if err := os.WriteFile(sidecarPath, seed, 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	workspace, err := manager.Prepare(context.Background(), true)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	metadata := workspace.Collections[0].Images[0].Metadata
	if metadata.Caption != "Human caption" {
		t.Fatalf("manual caption must survive annotation, got %q", metadata.Caption)
	}
	if !equalStrings(metadata.Tags, []string{"Chosen"}) {
		t.Fatalf("manual tags must survive annotation, got %v", metadata.Tags)
	}
}

func TestCleanupMetadataBumpsRevisionOnce(t *testing.T) {
	metadata := ImageMetadata{
		Title:       "Photo",
		AltText:     "  a photo of the bay ",
		Description: "it was windy",
		Tags:        []string{"Bay", "bay", "photo", "wind-swept"},
	}
	now := time.Now().UTC()
	if !cleanupMetadata(&metadata, now) {
		t.Fatal("expected cleanup to report a change")
	}
	if metadata.AltText != "A photo of the bay" {
		t.Fatalf("unexpected cleaned alt %q", metadata.AltText)
	}
	if metadata.Description != "It was windy." {
		t.Fatalf("expected terminal period, got %q", metadata.Description)
	}
	if !equalStrings(metadata.Tags, []string{"Bay", "wind-swept"}) {
		t.Fatalf("unexpected cleaned tags %v", metadata.Tags)
	}
	if metadata.CleanupRevision != 1 {
		t.Fatalf("expected revision 1, got %d", metadata.CleanupRevision)
	}

	if cleanupMetadata(&metadata, now) {
		t.Fatal("second cleanup over clean data must be a no-op")
	}
	if metadata.CleanupRevision != 1 {
		t.Fatalf("revision must not bump without changes, got %d", metadata.CleanupRevision)
	}
}
