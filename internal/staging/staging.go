package staging

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lantern/internal/config"
	"lantern/internal/fileutil"
	"lantern/internal/logging"
)

// Result summarizes one staging pass.
type Result struct {
	// StagedPaths are the absolute paths staged into (or already inside)
	// the output root, including the derivative mirror.
	StagedPaths []string
	// TemplatePaths are the top-level template entries staged this run.
	// These are what the build state remembers for the next run's cleanup.
	TemplatePaths []string
	// RemovedTemplates are previously staged paths deleted because their
	// template source no longer exists.
	RemovedTemplates []string
}

// Stager copies templates and the derivative mirror into the output root.
type Stager struct {
	templatesDir string
	outputRoot   string
	derivedRoot  string
	logger       *slog.Logger
}

func NewStager(cfg *config.Config, logger *slog.Logger) *Stager {
	return &Stager{
		templatesDir: cfg.Paths.TemplatesDir,
		outputRoot:   cfg.Paths.OutputDir,
		derivedRoot:  cfg.DerivedRoot(),
		logger:       logging.NewComponentLogger(logger, "staging"),
	}
}

// Stage copies every top-level template entry into the output root, removes
// previously staged entries whose sources vanished, and mirrors the derived
// tree when it lives outside the output root. previousTemplatePaths are
// output-root-relative slash paths recorded by the last run.
func (s *Stager) Stage(previousTemplatePaths []string) (*Result, error) {
	result := &Result{}
	if err := os.MkdirAll(s.outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}

	current := make(map[string]struct{})
	entries, err := os.ReadDir(s.templatesDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read template root: %w", err)
	}
	for _, entry := range entries {
		source := filepath.Join(s.templatesDir, entry.Name())
		destination := filepath.Join(s.outputRoot, entry.Name())
		if entry.IsDir() {
			if err := copyTree(source, destination); err != nil {
				return nil, fmt.Errorf("stage template directory %s: %w", entry.Name(), err)
			}
		} else {
			if err := fileutil.CopyFilePreserveTimes(source, destination); err != nil {
				return nil, fmt.Errorf("stage template file %s: %w", entry.Name(), err)
			}
		}
		result.StagedPaths = append(result.StagedPaths, destination)
		result.TemplatePaths = append(result.TemplatePaths, destination)
		current[filepath.ToSlash(entry.Name())] = struct{}{}
	}

	// Sweep previously staged entries whose source is gone. Paths come from
	// the build state as output-root-relative; anything that would escape
	// the output root is ignored.
	stale := make([]string, 0, len(previousTemplatePaths))
	for _, previous := range previousTemplatePaths {
		cleaned := strings.TrimLeft(filepath.ToSlash(filepath.Clean(previous)), "/")
		if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "../") {
			continue
		}
		if _, ok := current[cleaned]; ok {
			continue
		}
		stale = append(stale, cleaned)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(stale)))
	for _, rel := range stale {
		target := filepath.Join(s.outputRoot, filepath.FromSlash(rel))
		if _, err := os.Stat(target); err != nil {
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return nil, fmt.Errorf("remove stale template asset %s: %w", rel, err)
		}
		s.logger.Info("removed stale template asset", logging.String("path", rel))
		result.RemovedTemplates = append(result.RemovedTemplates, target)
	}

	if err := s.mirrorDerived(result); err != nil {
		return nil, err
	}
	return result, nil
}

// mirrorDerived copies the derivative tree under the output root when it is
// generated elsewhere. A derived root already inside the output root is
// served in place.
func (s *Stager) mirrorDerived(result *Result) error {
	if _, err := os.Stat(s.derivedRoot); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat derived root: %w", err)
	}

	if rel, err := filepath.Rel(s.outputRoot, s.derivedRoot); err == nil &&
		rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		result.StagedPaths = append(result.StagedPaths, s.derivedRoot)
		return nil
	}

	destination := filepath.Join(s.outputRoot, s.derivedWebBase())
	if err := os.RemoveAll(destination); err != nil {
		return fmt.Errorf("clear derivative mirror: %w", err)
	}
	if err := copyTree(s.derivedRoot, destination); err != nil {
		return fmt.Errorf("mirror derivative tree: %w", err)
	}
	result.StagedPaths = append(result.StagedPaths, destination)
	return nil
}

// derivedWebBase picks the output-relative location of the derivative
// mirror: the derived root's path relative to the project root when it fits,
// its leaf name otherwise.
func (s *Stager) derivedWebBase() string {
	projectRoot := filepath.Dir(s.outputRoot)
	if rel, err := filepath.Rel(projectRoot, s.derivedRoot); err == nil &&
		rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.FromSlash(filepath.ToSlash(rel))
	}
	return filepath.Base(s.derivedRoot)
}

// ResetDirectory removes a directory and recreates it empty.
func ResetDirectory(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("clear directory %q: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("recreate directory %q: %w", path, err)
	}
	return nil
}

// copyTree replaces destination with a recursive copy of source, preserving
// file modes and times.
func copyTree(source, destination string) error {
	if err := os.RemoveAll(destination); err != nil {
		return err
	}
	return filepath.WalkDir(source, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return fileutil.CopyFilePreserveTimes(path, target)
	})
}
