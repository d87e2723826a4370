package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"lantern/internal/config"
	"lantern/internal/content"
	"lantern/internal/fileutil"
	"lantern/internal/logging"
)

// Result accumulates everything one processing run produced. Per-item
// problems land in the warning/missing/unsupported lists instead of aborting
// the run. All mutation goes through the locked add methods so tasks can be
// processed concurrently; merges are associative, so worker order never
// changes the final contents.
type Result struct {
	mu sync.Mutex

	Variants         map[string][]content.MediaVariant
	ProcessedTasks   int
	ReusedTasks      int
	SkippedTasks     int
	CopiedAssets     int
	ReusedAssets     int
	Warnings         []string
	MissingSources   []string
	UnsupportedMedia []string
	PrunedArtifacts  int
}

func newResult() *Result {
	return &Result{Variants: make(map[string][]content.MediaVariant)}
}

func (r *Result) addTaskVariant(mediaPath string, variant content.MediaVariant, reused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Variants[mediaPath] = append(r.Variants[mediaPath], variant)
	if reused {
		r.ReusedTasks++
	} else {
		r.ProcessedTasks++
	}
}

func (r *Result) addStaticVariant(mediaPath string, variant content.MediaVariant, reused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Variants[mediaPath] {
		if existing.Profile == variant.Profile && existing.Path == variant.Path {
			return
		}
	}
	r.Variants[mediaPath] = append(r.Variants[mediaPath], variant)
	if reused {
		r.ReusedAssets++
	} else {
		r.CopiedAssets++
	}
}

func (r *Result) addSkipped() {
	r.mu.Lock()
	r.SkippedTasks++
	r.mu.Unlock()
}

func (r *Result) addWarning(message string) {
	r.mu.Lock()
	r.Warnings = append(r.Warnings, message)
	r.mu.Unlock()
}

func (r *Result) addMissingSource(source string) {
	r.mu.Lock()
	r.MissingSources = append(r.MissingSources, source)
	r.mu.Unlock()
}

func (r *Result) addUnsupported(source string) {
	r.mu.Lock()
	r.UnsupportedMedia = append(r.UnsupportedMedia, source)
	r.mu.Unlock()
}

// VariantCount reports the total number of variants across all media paths.
func (r *Result) VariantCount() int {
	total := 0
	for _, variants := range r.Variants {
		total += len(variants)
	}
	return total
}

// Processor executes a media plan against the derivative output root.
type Processor struct {
	derivedRoot string
	watermark   config.Watermark
	embed       config.Embed
	maxPixels   int64
	workers     int
	logger      *slog.Logger
}

// NewProcessor builds a processor from configuration.
func NewProcessor(cfg *config.Config, logger *slog.Logger) *Processor {
	return &Processor{
		derivedRoot: cfg.DerivedRoot(),
		watermark:   cfg.Media.Watermark,
		embed:       cfg.Media.Embed,
		maxPixels:   cfg.Media.MaxPixels,
		workers:     cfg.Media.Workers,
		logger:      logging.NewComponentLogger(logger, "processor"),
	}
}

// Process runs every task and static asset in the plan, then prunes the
// derivative root down to exactly the files this run produced or reused.
// Tasks run on a bounded worker pool; the prune is a hard barrier that only
// starts after every destination write has completed.
func (p *Processor) Process(ctx context.Context, plan *Plan) (*Result, error) {
	result := newResult()
	if err := os.MkdirAll(p.derivedRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create derivative root: %w", err)
	}

	keep := newKeepSet()

	tasks := plan.Tasks()
	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers < 1 {
		workers = 1
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		fatalErr error
	)
	queue := make(chan *Task)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if ctx.Err() != nil {
					continue
				}
				if err := p.processTask(task, result, keep); err != nil {
					errOnce.Do(func() { fatalErr = err })
				}
			}
		}()
	}
	for _, task := range tasks {
		queue <- task
	}
	close(queue)
	wg.Wait()

	if fatalErr != nil {
		return result, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	for _, asset := range plan.StaticAssets() {
		if err := p.processStatic(asset, result, keep); err != nil {
			return result, err
		}
	}

	pruned, err := pruneArtifacts(p.derivedRoot, keep)
	if err != nil {
		return result, fmt.Errorf("prune derivative root: %w", err)
	}
	result.PrunedArtifacts = pruned
	return result, nil
}

// processTask handles one derivative task. Skippable conditions (missing
// source, unsupported type, oversized decode) are recorded and never returned
// as errors; only structural I/O failures propagate.
func (p *Processor) processTask(task *Task, result *Result, keep *keepSet) error {
	info, err := os.Stat(task.Source)
	if err != nil {
		logging.WarnWithImpact(p.logger, "media source missing",
			"task skipped; no variant produced",
			logging.String("source", task.Source),
			logging.String("media_path", task.MediaPath),
		)
		result.addMissingSource(task.MediaPath)
		result.addSkipped()
		return nil
	}

	if _, ok := transcodableExtensions[strings.ToLower(filepath.Ext(task.Source))]; !ok {
		p.logger.Info("skipping unsupported media type", logging.String("source", task.Source))
		result.addUnsupported(task.MediaPath)
		result.addSkipped()
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(task.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	if isCached(info, task.Destination) {
		variant, err := p.cachedVariant(task)
		if err != nil {
			// Unreadable cached output; fall through to regeneration.
			logging.WarnWithImpact(p.logger, "cached derivative unreadable",
				"derivative regenerated",
				logging.String("destination", task.Destination),
				logging.Error(err),
			)
		} else {
			result.addTaskVariant(task.MediaPath, variant, true)
			keep.add(task.Destination)
			return nil
		}
	}

	variant, err := p.renderDerivative(task)
	if err != nil {
		if errors.Is(err, errOversized) {
			message := fmt.Sprintf("oversized image skipped: %s (%v)", task.Source, err)
			logging.WarnWithImpact(p.logger, "oversized image skipped",
				"task skipped; no variant produced",
				logging.String("source", task.Source),
				logging.Error(err),
			)
			result.addWarning(message)
			result.addSkipped()
			return nil
		}
		return fmt.Errorf("process %s (%s): %w", task.MediaPath, task.Profile.Name, err)
	}

	result.addTaskVariant(task.MediaPath, variant, false)
	keep.add(task.Destination)
	return nil
}

// cachedVariant records a reused derivative using only a header read.
func (p *Processor) cachedVariant(task *Task) (content.MediaVariant, error) {
	width, height, err := imageDimensions(task.Destination)
	if err != nil {
		return content.MediaVariant{}, err
	}
	return content.MediaVariant{
		Profile: task.Profile.Name,
		Path:    p.relativeVariantPath(task.Destination),
		Width:   width,
		Height:  height,
		Format:  task.Profile.Format,
		Quality: task.Profile.Quality,
	}, nil
}

// renderDerivative decodes, resizes, optionally watermarks, encodes, and
// optionally embeds metadata. Watermark and embed failures downgrade to
// warnings; the base write proceeds regardless.
func (p *Processor) renderDerivative(task *Task) (content.MediaVariant, error) {
	img, err := decodeGuarded(task.Source, p.maxPixels)
	if err != nil {
		return content.MediaVariant{}, err
	}

	bounds := img.Bounds()
	width, height, resize := targetSize(bounds.Dx(), bounds.Dy(), task.Profile)
	if resize {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}

	if p.watermark.Enabled && p.watermark.Text != "" {
		marked, err := applyWatermark(img, p.watermark)
		if err != nil {
			logging.WarnWithImpact(p.logger, "watermarking failed",
				"derivative written without watermark",
				logging.String("source", task.Source),
				logging.Error(err),
			)
		} else {
			img = marked
		}
	}

	var buf bytes.Buffer
	if err := encodeImage(&buf, img, task.Profile.Format, task.Profile.Quality); err != nil {
		return content.MediaVariant{}, fmt.Errorf("encode %s: %w", task.Profile.Format, err)
	}
	encoded := buf.Bytes()

	if p.embed.Enabled {
		embedded, err := embedMetadata(encoded, task.Profile.Format, p.embed)
		if err != nil {
			logging.WarnWithImpact(p.logger, "metadata embed failed",
				"derivative written without embedded metadata",
				logging.String("source", task.Source),
				logging.Error(err),
			)
		} else {
			encoded = embedded
		}
	}

	if err := os.WriteFile(task.Destination, encoded, 0o644); err != nil {
		return content.MediaVariant{}, fmt.Errorf("write derivative: %w", err)
	}

	return content.MediaVariant{
		Profile: task.Profile.Name,
		Path:    p.relativeVariantPath(task.Destination),
		Width:   width,
		Height:  height,
		Format:  task.Profile.Format,
		Quality: task.Profile.Quality,
	}, nil
}

// processStatic copies a passthrough asset byte-for-byte unless the cached
// copy is still fresh.
func (p *Processor) processStatic(asset StaticAsset, result *Result, keep *keepSet) error {
	info, err := os.Stat(asset.Source)
	if err != nil {
		logging.WarnWithImpact(p.logger, "media source missing",
			"asset not staged",
			logging.String("source", asset.Source),
			logging.String("media_path", asset.MediaPath),
		)
		result.addMissingSource(asset.MediaPath)
		return nil
	}

	destination := joinFilePath(p.derivedRoot, asset.MediaPath)
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("create asset directory: %w", err)
	}

	reused := isCached(info, destination)
	if !reused {
		if err := fileutil.CopyFilePreserveTimes(asset.Source, destination); err != nil {
			return fmt.Errorf("copy asset %s: %w", asset.MediaPath, err)
		}
	}

	format := strings.TrimPrefix(strings.ToLower(path.Ext(asset.MediaPath)), ".")
	result.addStaticVariant(asset.MediaPath, content.MediaVariant{
		Profile: "original",
		Path:    asset.MediaPath,
		Format:  format,
	}, reused)
	keep.add(destination)
	return nil
}

// isCached reports whether destination can stand in for the source: it
// exists, is nonempty, and is not older than the source. Validity is
// mtime+size by contract; content-hash checks stay on the sidecar records.
func isCached(sourceInfo os.FileInfo, destination string) bool {
	destInfo, err := os.Stat(destination)
	if err != nil {
		return false
	}
	return destInfo.Size() > 0 && !destInfo.ModTime().Before(sourceInfo.ModTime())
}

func (p *Processor) relativeVariantPath(destination string) string {
	rel, err := filepath.Rel(p.derivedRoot, destination)
	if err != nil {
		return filepath.ToSlash(destination)
	}
	return filepath.ToSlash(rel)
}

// ApplyVariants copies produced variants back onto every document reference
// so downstream rendering sees the generated derivative paths.
func ApplyVariants(documents []content.Document, variants map[string][]content.MediaVariant) {
	for i := range documents {
		document := &documents[i]
		if document.Hero != nil {
			attachVariants(document.Hero, variants)
		}
		for j := range document.Assets {
			attachVariants(&document.Assets[j], variants)
		}
	}
}

func attachVariants(ref *content.MediaReference, variants map[string][]content.MediaVariant) {
	matched := variants[normalizeMediaPath(ref.Path)]
	ref.Variants = make([]content.MediaVariant, len(matched))
	copy(ref.Variants, matched)
}
