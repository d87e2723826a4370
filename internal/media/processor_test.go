package media

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"lantern/internal/config"
	"lantern/internal/content"
	"lantern/internal/logging"
)

func writeTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create image directory: %v", err)
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("write test image: %v", err)
	}
}

func testProcessorConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testPlannerConfig(t)
	cfg.Media.Profiles = []config.Profile{
		{Name: "thumb", Width: 8, Height: 8, Format: "jpg", Quality: 80},
	}
	cfg.Media.Workers = 2
	return cfg
}

func runPlan(t *testing.T, cfg *config.Config, documents []content.Document) *Result {
	t.Helper()
	planner := NewPlanner(cfg, logging.NewNop())
	processor := NewProcessor(cfg, logging.NewNop())
	result, err := processor.Process(context.Background(), planner.Collect(documents))
	if err != nil {
		t.Fatalf("process plan: %v", err)
	}
	return result
}

func TestProcessGeneratesAndReusesDerivatives(t *testing.T) {
	cfg := testProcessorConfig(t)
	source := filepath.Join(cfg.Paths.ArticleMediaDir, "posts", "cover.jpg")
	writeTestImage(t, source, 32, 16)

	documents := []content.Document{
		{Slug: "post", Hero: &content.MediaReference{Path: "media/posts/cover.jpg"}},
	}

	result := runPlan(t, cfg, documents)
	if result.ProcessedTasks != 1 || result.ReusedTasks != 0 {
		t.Fatalf("expected 1 processed task, got processed=%d reused=%d",
			result.ProcessedTasks, result.ReusedTasks)
	}

	destination := filepath.Join(cfg.Media.OutputDir, "thumb", "media", "posts", "cover.jpg")
	width, height, err := imageDimensions(destination)
	if err != nil {
		t.Fatalf("read derivative: %v", err)
	}
	if width != 8 || height != 4 {
		t.Fatalf("expected downscaled 8x4 derivative, got %dx%d", width, height)
	}

	variants := result.Variants["media/posts/cover.jpg"]
	if len(variants) != 1 {
		t.Fatalf("expected one variant, got %d", len(variants))
	}
	if variants[0].Path != "thumb/media/posts/cover.jpg" || variants[0].Profile != "thumb" {
		t.Fatalf("unexpected variant %+v", variants[0])
	}

	again := runPlan(t, cfg, documents)
	if again.ProcessedTasks != 0 || again.ReusedTasks != 1 {
		t.Fatalf("expected cached reuse, got processed=%d reused=%d",
			again.ProcessedTasks, again.ReusedTasks)
	}
}

func TestProcessRegeneratesStaleDerivative(t *testing.T) {
	cfg := testProcessorConfig(t)
	source := filepath.Join(cfg.Paths.ArticleMediaDir, "posts", "cover.jpg")
	writeTestImage(t, source, 32, 16)

	documents := []content.Document{
		{Slug: "post", Hero: &content.MediaReference{Path: "media/posts/cover.jpg"}},
	}
	runPlan(t, cfg, documents)

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(source, future, future); err != nil {
		t.Fatalf("touch source: %v", err)
	}

	result := runPlan(t, cfg, documents)
	if result.ProcessedTasks != 1 || result.ReusedTasks != 0 {
		t.Fatalf("expected regeneration after source touch, got processed=%d reused=%d",
			result.ProcessedTasks, result.ReusedTasks)
	}
}

func TestProcessPrunesStaleArtifacts(t *testing.T) {
	cfg := testProcessorConfig(t)
	source := filepath.Join(cfg.Paths.ArticleMediaDir, "posts", "cover.jpg")
	writeTestImage(t, source, 32, 16)

	stale := filepath.Join(cfg.Media.OutputDir, "thumb", "old", "gone.jpg")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatalf("create stale directory: %v", err)
	}
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write stale artifact: %v", err)
	}

	documents := []content.Document{
		{Slug: "post", Hero: &content.MediaReference{Path: "media/posts/cover.jpg"}},
	}
	result := runPlan(t, cfg, documents)

	if result.PrunedArtifacts != 1 {
		t.Fatalf("expected 1 pruned artifact, got %d", result.PrunedArtifacts)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale artifact removed, stat err %v", err)
	}
	if _, err := os.Stat(filepath.Dir(stale)); !os.IsNotExist(err) {
		t.Fatalf("expected emptied directory removed, stat err %v", err)
	}
	kept := filepath.Join(cfg.Media.OutputDir, "thumb", "media", "posts", "cover.jpg")
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("expected fresh derivative kept: %v", err)
	}
}

func TestProcessSkipsMissingSource(t *testing.T) {
	cfg := testProcessorConfig(t)
	documents := []content.Document{
		{Slug: "post", Hero: &content.MediaReference{Path: "media/missing.jpg"}},
	}

	result := runPlan(t, cfg, documents)
	if result.SkippedTasks != 1 {
		t.Fatalf("expected 1 skipped task, got %d", result.SkippedTasks)
	}
	if len(result.MissingSources) != 1 || result.MissingSources[0] != "media/missing.jpg" {
		t.Fatalf("expected missing source recorded, got %v", result.MissingSources)
	}
	if len(result.Variants) != 0 {
		t.Fatalf("expected no variants, got %v", result.Variants)
	}
}

func TestProcessSkipsOversizedImage(t *testing.T) {
	cfg := testProcessorConfig(t)
	cfg.Media.MaxPixels = 64
	source := filepath.Join(cfg.Paths.ArticleMediaDir, "huge.jpg")
	writeTestImage(t, source, 16, 16)

	documents := []content.Document{
		{Slug: "post", Hero: &content.MediaReference{Path: "media/huge.jpg"}},
	}

	result := runPlan(t, cfg, documents)
	if result.SkippedTasks != 1 || result.ProcessedTasks != 0 {
		t.Fatalf("expected oversized skip, got processed=%d skipped=%d",
			result.ProcessedTasks, result.SkippedTasks)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
}

func TestProcessCopiesStaticAssets(t *testing.T) {
	cfg := testProcessorConfig(t)
	source := filepath.Join(cfg.Paths.ArticleMediaDir, "files", "report.pdf")
	if err := os.MkdirAll(filepath.Dir(source), 0o755); err != nil {
		t.Fatalf("create source directory: %v", err)
	}
	if err := os.WriteFile(source, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	documents := []content.Document{
		{Slug: "post", Assets: []content.MediaReference{{Path: "media/files/report.pdf"}}},
	}

	result := runPlan(t, cfg, documents)
	if result.CopiedAssets != 1 || result.ReusedAssets != 0 {
		t.Fatalf("expected one copied asset, got copied=%d reused=%d",
			result.CopiedAssets, result.ReusedAssets)
	}

	copied := filepath.Join(cfg.Media.OutputDir, "media", "files", "report.pdf")
	payload, err := os.ReadFile(copied)
	if err != nil {
		t.Fatalf("read copied asset: %v", err)
	}
	if string(payload) != "%PDF-1.4 test" {
		t.Fatalf("copied asset differs from source")
	}

	variants := result.Variants["media/files/report.pdf"]
	if len(variants) != 1 || variants[0].Profile != "original" || variants[0].Format != "pdf" {
		t.Fatalf("unexpected static variant %v", variants)
	}

	again := runPlan(t, cfg, documents)
	if again.CopiedAssets != 0 || again.ReusedAssets != 1 {
		t.Fatalf("expected cached asset reuse, got copied=%d reused=%d",
			again.CopiedAssets, again.ReusedAssets)
	}
}

func TestApplyVariantsAttachesToReferences(t *testing.T) {
	variants := map[string][]content.MediaVariant{
		"media/a.jpg": {{Profile: "thumb", Path: "thumb/a.jpg"}},
	}
	documents := []content.Document{
		{
			Slug: "post",
			Hero: &content.MediaReference{Path: "/media/a.jpg"},
			Assets: []content.MediaReference{
				{Path: "media/a.jpg"},
				{Path: "media/other.jpg"},
			},
		},
	}

	ApplyVariants(documents, variants)

	if len(documents[0].Hero.Variants) != 1 {
		t.Fatalf("expected hero variants attached, got %v", documents[0].Hero.Variants)
	}
	if len(documents[0].Assets[0].Variants) != 1 {
		t.Fatalf("expected asset variants attached, got %v", documents[0].Assets[0].Variants)
	}
	if len(documents[0].Assets[1].Variants) != 0 {
		t.Fatalf("expected no variants for unprocessed media, got %v",
			documents[0].Assets[1].Variants)
	}
}

func TestAuditReportsMissingAndOrphans(t *testing.T) {
	cfg := testProcessorConfig(t)
	writeTestImage(t, filepath.Join(cfg.Paths.ArticleMediaDir, "used.jpg"), 4, 4)
	writeTestImage(t, filepath.Join(cfg.Paths.ArticleMediaDir, "unused.jpg"), 4, 4)

	documents := []content.Document{
		{
			Slug: "post",
			Assets: []content.MediaReference{
				{Path: "media/used.jpg"},
				{Path: "media/missing.jpg"},
				{Path: "nowhere/lost.jpg"},
			},
		},
	}

	auditor := NewAuditor(cfg, logging.NewNop())
	report, err := auditor.Audit(documents)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if report.Clean() {
		t.Fatal("expected audit findings")
	}
	if len(report.MissingReferences) != 1 || report.MissingReferences[0] != "media/missing.jpg" {
		t.Fatalf("unexpected missing references %v", report.MissingReferences)
	}
	if len(report.UnresolvedReferences) != 1 || report.UnresolvedReferences[0] != "nowhere/lost.jpg" {
		t.Fatalf("unexpected unresolved references %v", report.UnresolvedReferences)
	}
	if len(report.OrphanFiles) != 1 || report.OrphanFiles[0] != "media/unused.jpg" {
		t.Fatalf("unexpected orphans %v", report.OrphanFiles)
	}
	if report.ReferencedCount != 3 || report.ScannedCount != 2 {
		t.Fatalf("unexpected counts referenced=%d scanned=%d",
			report.ReferencedCount, report.ScannedCount)
	}
}
