package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"lantern/internal/buildstate"
	"lantern/internal/config"
	"lantern/internal/content"
	"lantern/internal/fileutil"
	"lantern/internal/gallery"
	"lantern/internal/logging"
	"lantern/internal/media"
	"lantern/internal/staging"
)

// ErrWorkspaceLocked indicates another build holds the workspace lock.
var ErrWorkspaceLocked = errors.New("another build is already running in this workspace")

const lockFilename = "lantern.lock"

// Options tune one build run.
type Options struct {
	// Force clears the output and derivative trees before building.
	Force bool
	// RefreshGallery regenerates gallery sidecars that already exist.
	RefreshGallery bool
	// Annotator optionally generates image descriptions. Nil skips the
	// annotation stage.
	Annotator gallery.Annotator
}

// Report summarizes a completed run for the CLI.
type Report struct {
	RunID       string        `json:"run_id"`
	ProjectName string        `json:"project_name"`
	FirstRun    bool          `json:"first_run"`
	ChangedKeys []string      `json:"changed_keys,omitempty"`
	Duration    time.Duration `json:"duration_ns"`

	Documents     int `json:"documents"`
	PlannedTasks  int `json:"planned_tasks"`
	PlannedAssets int `json:"planned_assets"`

	ProcessedTasks  int `json:"processed_tasks"`
	ReusedTasks     int `json:"reused_tasks"`
	SkippedTasks    int `json:"skipped_tasks"`
	CopiedAssets    int `json:"copied_assets"`
	ReusedAssets    int `json:"reused_assets"`
	PrunedArtifacts int `json:"pruned_artifacts"`

	GalleryCollections    int `json:"gallery_collections"`
	GalleryImages         int `json:"gallery_images"`
	GallerySidecarWrites  int `json:"gallery_sidecar_writes"`
	GalleryDerivedUpdates int `json:"gallery_derived_updates"`

	StagedTemplates  int `json:"staged_templates"`
	RemovedTemplates int `json:"removed_templates"`

	Warnings []string `json:"warnings,omitempty"`
}

// Builder wires the subsystems together for one workspace.
type Builder struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
}

// New returns a builder for the given configuration. configPath is the
// resolved configuration file location used for fingerprinting.
func New(cfg *config.Config, configPath string, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, configPath: configPath, logger: logger}
}

// Run executes a full build. Per-item problems surface as report warnings;
// only structural failures return an error.
func (b *Builder) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := b.logger.With(logging.String(logging.FieldRunID, runID))

	if err := b.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(b.cfg.Paths.CacheDir, lockFilename))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !locked {
		return nil, ErrWorkspaceLocked
	}
	defer func() { _ = lock.Unlock() }()

	tracker := buildstate.NewTracker(b.cfg, logger)
	fingerprints, err := tracker.ComputeFingerprints(b.configPath, b.cfg)
	if err != nil {
		return nil, err
	}
	summary := tracker.Summarize(fingerprints)

	report := &Report{
		RunID:       runID,
		ProjectName: b.cfg.ProjectName,
		FirstRun:    summary.FirstRun,
		ChangedKeys: summary.ChangedKeys,
	}
	logger.Info("starting build",
		logging.Bool("first_run", summary.FirstRun),
		logging.Int("changed_groups", len(summary.ChangedKeys)),
		logging.Bool("force", opts.Force),
	)

	if opts.Force {
		for _, dir := range []string{b.cfg.Paths.OutputDir, b.cfg.DerivedRoot()} {
			if err := staging.ResetDirectory(dir); err != nil {
				return nil, err
			}
		}
	}

	hasher := fileutil.NewHasher()

	var (
		workspace *gallery.Workspace
		manager   *gallery.Manager
	)
	if b.cfg.Gallery.Enabled {
		manager = gallery.NewManager(b.cfg, hasher, opts.Annotator, logger)
		workspace, err = manager.Prepare(ctx, opts.RefreshGallery)
		if err != nil {
			return nil, fmt.Errorf("prepare gallery: %w", err)
		}
		report.GalleryCollections = len(workspace.Collections)
		report.GalleryImages = workspace.ImageCount()
		report.Warnings = append(report.Warnings, workspace.Warnings...)
		report.Warnings = append(report.Warnings, workspace.Errors...)
	}

	documents, err := content.LoadDocuments(b.cfg.Paths.ContentDir, logger)
	if err != nil {
		return nil, err
	}
	if workspace != nil {
		documents = append(documents, gallery.Documents(workspace)...)
	}
	report.Documents = len(documents)

	plan := media.NewPlanner(b.cfg, logger).Collect(documents)
	report.PlannedTasks = plan.TaskCount()
	report.PlannedAssets = plan.StaticCount()

	result, err := media.NewProcessor(b.cfg, logger).Process(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("process media plan: %w", err)
	}
	report.ProcessedTasks = result.ProcessedTasks
	report.ReusedTasks = result.ReusedTasks
	report.SkippedTasks = result.SkippedTasks
	report.CopiedAssets = result.CopiedAssets
	report.ReusedAssets = result.ReusedAssets
	report.PrunedArtifacts = result.PrunedArtifacts
	report.Warnings = append(report.Warnings, result.Warnings...)
	for _, missing := range result.MissingSources {
		report.Warnings = append(report.Warnings, "missing media source: "+missing)
	}
	for _, unsupported := range result.UnsupportedMedia {
		report.Warnings = append(report.Warnings, "unsupported media type: "+unsupported)
	}

	media.ApplyVariants(documents, result.Variants)

	if workspace != nil {
		updated, err := manager.ApplyDerivatives(workspace, result.Variants, opts.RefreshGallery)
		if err != nil {
			return nil, fmt.Errorf("apply gallery derivatives: %w", err)
		}
		report.GalleryDerivedUpdates = updated
		if err := manager.ExportDatasets(workspace); err != nil {
			return nil, fmt.Errorf("export gallery datasets: %w", err)
		}
		report.GallerySidecarWrites = len(workspace.CollectionWrites) + len(workspace.ImageWrites)
	}

	stageResult, err := staging.NewStager(b.cfg, logger).Stage(tracker.PreviousTemplatePaths())
	if err != nil {
		return nil, fmt.Errorf("stage output tree: %w", err)
	}
	report.StagedTemplates = len(stageResult.TemplatePaths)
	report.RemovedTemplates = len(stageResult.RemovedTemplates)

	if err := tracker.Persist(fingerprints, stageResult.TemplatePaths); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	logger.Info("build complete",
		logging.Int("processed", report.ProcessedTasks),
		logging.Int("reused", report.ReusedTasks),
		logging.Int("pruned", report.PrunedArtifacts),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

// PlanSummary describes what a build would do without running it.
type PlanSummary struct {
	Documents int
	Tasks     []*media.Task
	Assets    []media.StaticAsset
}

// Plan loads documents and collects the media plan without processing it.
// The gallery workspace is loaded read-only so gallery references appear in
// the plan, but no sidecar is written.
func (b *Builder) Plan(ctx context.Context) (*PlanSummary, error) {
	documents, err := b.loadAllDocuments(ctx)
	if err != nil {
		return nil, err
	}
	plan := media.NewPlanner(b.cfg, b.logger).Collect(documents)
	return &PlanSummary{
		Documents: len(documents),
		Tasks:     plan.Tasks(),
		Assets:    plan.StaticAssets(),
	}, nil
}

// Status reports which input groups changed since the last persisted build.
func (b *Builder) Status() (buildstate.ChangeSummary, error) {
	tracker := buildstate.NewTracker(b.cfg, b.logger)
	fingerprints, err := tracker.ComputeFingerprints(b.configPath, b.cfg)
	if err != nil {
		return buildstate.ChangeSummary{}, err
	}
	return tracker.Summarize(fingerprints), nil
}

// Audit cross-checks document references against the media mounts.
func (b *Builder) Audit(ctx context.Context) (*media.AuditReport, error) {
	documents, err := b.loadAllDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return media.NewAuditor(b.cfg, b.logger).Audit(documents)
}

// RefreshGallery regenerates every gallery sidecar and re-exports datasets.
func (b *Builder) RefreshGallery(ctx context.Context, annotator gallery.Annotator) (*gallery.Workspace, error) {
	if !b.cfg.Gallery.Enabled {
		return nil, errors.New("gallery support is disabled in the configuration")
	}
	manager := gallery.NewManager(b.cfg, fileutil.NewHasher(), annotator, b.logger)
	workspace, err := manager.Prepare(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := manager.ExportDatasets(workspace); err != nil {
		return nil, err
	}
	return workspace, nil
}

// loadAllDocuments combines content-tree documents with gallery collection
// documents. Gallery sidecars are not modified.
func (b *Builder) loadAllDocuments(ctx context.Context) ([]content.Document, error) {
	documents, err := content.LoadDocuments(b.cfg.Paths.ContentDir, b.logger)
	if err != nil {
		return nil, err
	}
	if b.cfg.Gallery.Enabled {
		manager := gallery.NewManager(b.cfg, fileutil.NewHasher(), nil, b.logger)
		workspace, err := manager.Load(ctx)
		if err != nil {
			return nil, err
		}
		documents = append(documents, gallery.Documents(workspace)...)
	}
	return documents, nil
}
