package buildstate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lantern/internal/config"
	"lantern/internal/logging"
)

// Fingerprint group keys. Each key covers one watched input; a build can use
// the changed set to skip work whose inputs are untouched.
const (
	KeyConfigFile   = "config_file"
	KeyConfigValues = "config_values"
	KeyContent      = "content"
	KeyMedia        = "media"
	KeyArticleMedia = "article_media"
	KeyTemplates    = "templates"
	KeyGallery      = "gallery"
)

// ChangeSummary reports how the current fingerprints differ from the
// previous run.
type ChangeSummary struct {
	FirstRun    bool
	ChangedKeys []string
}

// HasChanges reports whether any group changed. A first run always counts.
func (s ChangeSummary) HasChanges() bool {
	return s.FirstRun || len(s.ChangedKeys) > 0
}

// Changed reports whether a specific fingerprint group changed.
func (s ChangeSummary) Changed(key string) bool {
	if s.FirstRun {
		return true
	}
	for _, changed := range s.ChangedKeys {
		if changed == key {
			return true
		}
	}
	return false
}

// Tracker computes input fingerprints and persists them with the staged
// template list.
type Tracker struct {
	statePath  string
	outputRoot string
	previous   *State
	logger     *slog.Logger
}

// NewTracker loads the previous state from the cache directory. Corrupt state
// degrades to a first run with a logged warning, never a failed build.
func NewTracker(cfg *config.Config, logger *slog.Logger) *Tracker {
	statePath := filepath.Join(cfg.Paths.CacheDir, "build-state.json")
	componentLogger := logging.NewComponentLogger(logger, "buildstate")

	previous, _, err := LoadState(statePath)
	if err != nil {
		logging.WarnWithImpact(componentLogger, "build state unreadable",
			"treating this run as a first build",
			logging.String("path", statePath),
			logging.Error(err),
		)
	}

	return &Tracker{
		statePath:  statePath,
		outputRoot: cfg.Paths.OutputDir,
		previous:   previous,
		logger:     componentLogger,
	}
}

// ComputeFingerprints hashes every watched input group: the raw config file,
// the effective config values, and each watched directory tree. A missing
// tree fingerprints as the empty hash, so creating or deleting the whole tree
// registers as a change.
func (t *Tracker) ComputeFingerprints(configPath string, cfg *config.Config) (map[string]string, error) {
	fingerprints := make(map[string]string, 7)

	fileHash, err := hashFileIfExists(configPath)
	if err != nil {
		return nil, fmt.Errorf("fingerprint config file: %w", err)
	}
	fingerprints[KeyConfigFile] = fileHash

	snapshot, err := cfg.Snapshot()
	if err != nil {
		return nil, err
	}
	fingerprints[KeyConfigValues] = hashBytes(snapshot)

	trees := map[string]string{
		KeyContent:      cfg.Paths.ContentDir,
		KeyMedia:        cfg.Paths.MediaDir,
		KeyArticleMedia: cfg.Paths.ArticleMediaDir,
		KeyTemplates:    cfg.Paths.TemplatesDir,
		KeyGallery:      cfg.Gallery.SourceDir,
	}
	for key, root := range trees {
		// The derivative root is a build output; when it nests under a
		// watched tree (the default puts it inside media/), hashing it
		// would make every build dirty its own media fingerprint.
		treeHash, err := hashTree(root, cfg.Media.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s tree: %w", key, err)
		}
		fingerprints[key] = treeHash
	}
	return fingerprints, nil
}

// Summarize compares current fingerprints against the previous run.
func (t *Tracker) Summarize(current map[string]string) ChangeSummary {
	if len(t.previous.Fingerprints) == 0 {
		return ChangeSummary{FirstRun: true}
	}

	var changed []string
	for key, value := range current {
		if t.previous.Fingerprints[key] != value {
			changed = append(changed, key)
		}
	}
	for key := range t.previous.Fingerprints {
		if _, ok := current[key]; !ok {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return ChangeSummary{ChangedKeys: changed}
}

// PreviousTemplatePaths returns the output-root-relative template paths the
// previous run staged.
func (t *Tracker) PreviousTemplatePaths() []string {
	paths := make([]string, len(t.previous.StagedTemplatePaths))
	copy(paths, t.previous.StagedTemplatePaths)
	return paths
}

// Persist writes the new state. Staged paths are stored relative to the
// output root in slash form; anything outside the root is silently dropped
// since the cleaner must never reach outside the output tree.
func (t *Tracker) Persist(fingerprints map[string]string, stagedPaths []string) error {
	state := &State{
		Version:      stateVersion,
		Fingerprints: fingerprints,
	}
	for _, staged := range stagedPaths {
		rel, err := filepath.Rel(t.outputRoot, staged)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		state.StagedTemplatePaths = append(state.StagedTemplatePaths, filepath.ToSlash(rel))
	}
	sort.Strings(state.StagedTemplatePaths)
	return SaveState(t.statePath, state)
}

// hashTree fingerprints a directory as the hash of its sorted
// (relative path, mtime, size) triples. File contents are never read, so
// fingerprinting stays cheap even for large media trees. A missing root
// hashes as empty input. Excluded directories are skipped wholesale.
func hashTree(root string, exclude ...string) (string, error) {
	type entry struct {
		rel   string
		mtime int64
		size  int64
	}
	var entries []entry

	excluded := make(map[string]struct{}, len(exclude))
	for _, dir := range exclude {
		if dir != "" {
			excluded[filepath.Clean(dir)] = struct{}{}
		}
	}

	err := filepath.WalkDir(root, func(path string, dirEntry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if dirEntry.IsDir() {
			if _, skip := excluded[filepath.Clean(path)]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := dirEntry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{
			rel:   filepath.ToSlash(rel),
			mtime: info.ModTime().UnixNano(),
			size:  info.Size(),
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	digest := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(digest, "%s\x00%d\x00%d\n", e.rel, e.mtime, e.size)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

func hashBytes(payload []byte) string {
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}

// hashFileIfExists hashes a file's contents, or empty input when the file is
// absent.
func hashFileIfExists(path string) (string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return hashBytes(nil), nil
		}
		return "", err
	}
	return hashBytes(payload), nil
}
