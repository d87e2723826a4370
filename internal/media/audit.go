package media

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lantern/internal/config"
	"lantern/internal/content"
	"lantern/internal/logging"
)

// AuditReport summarizes the relationship between document references and the
// files actually present under the media mounts.
type AuditReport struct {
	// MissingReferences are referenced media paths whose source file does
	// not exist.
	MissingReferences []string
	// UnresolvedReferences are referenced paths that match no mount prefix.
	UnresolvedReferences []string
	// OrphanFiles are files under a mount that no document references.
	OrphanFiles []string
	// ReferencedCount is the number of distinct referenced media paths.
	ReferencedCount int
	// ScannedCount is the number of files found under all mounts.
	ScannedCount int
}

// Clean reports whether the audit found nothing to flag.
func (r *AuditReport) Clean() bool {
	return len(r.MissingReferences) == 0 &&
		len(r.UnresolvedReferences) == 0 &&
		len(r.OrphanFiles) == 0
}

// Auditor cross-checks document media references against the mount contents.
type Auditor struct {
	mounts           []config.Mount
	sidecarExtension string
	logger           *slog.Logger
}

// NewAuditor builds an auditor over the configured mount table. Sidecar files
// under the gallery mount are bookkeeping, not media, so they are excluded
// from orphan detection.
func NewAuditor(cfg *config.Config, logger *slog.Logger) *Auditor {
	return &Auditor{
		mounts:           cfg.MediaMounts(),
		sidecarExtension: cfg.Gallery.SidecarExtension,
		logger:           logging.NewComponentLogger(logger, "audit"),
	}
}

// Audit walks every mount and compares its files to the documents' media
// references. Mount directories that do not exist scan as empty.
func (a *Auditor) Audit(documents []content.Document) (*AuditReport, error) {
	referenced := make(map[string]struct{})
	report := &AuditReport{}

	for i := range documents {
		for _, ref := range documents[i].References() {
			mediaPath := normalizeMediaPath(ref.Reference.Path)
			if mediaPath == "" {
				continue
			}
			if _, seen := referenced[mediaPath]; seen {
				continue
			}
			referenced[mediaPath] = struct{}{}

			source, ok := a.resolve(mediaPath)
			if !ok {
				report.UnresolvedReferences = append(report.UnresolvedReferences, mediaPath)
				continue
			}
			if _, err := os.Stat(source); err != nil {
				report.MissingReferences = append(report.MissingReferences, mediaPath)
			}
		}
	}
	report.ReferencedCount = len(referenced)

	for _, mount := range a.mounts {
		found, err := a.scanMount(mount)
		if err != nil {
			return nil, err
		}
		report.ScannedCount += len(found)
		for _, mediaPath := range found {
			if _, ok := referenced[mediaPath]; !ok {
				report.OrphanFiles = append(report.OrphanFiles, mediaPath)
			}
		}
	}

	sort.Strings(report.MissingReferences)
	sort.Strings(report.UnresolvedReferences)
	sort.Strings(report.OrphanFiles)

	if !report.Clean() {
		logging.WarnWithImpact(a.logger, "media audit found inconsistencies",
			"referenced files may 404 or sit unused on disk",
			logging.Int("missing", len(report.MissingReferences)),
			logging.Int("unresolved", len(report.UnresolvedReferences)),
			logging.Int("orphans", len(report.OrphanFiles)),
		)
	}
	return report, nil
}

func (a *Auditor) resolve(mediaPath string) (string, bool) {
	prefix, remainder, found := strings.Cut(mediaPath, "/")
	if !found || remainder == "" {
		return "", false
	}
	for _, mount := range a.mounts {
		if mount.Prefix == prefix {
			return joinFilePath(mount.Dir, remainder), true
		}
	}
	return "", false
}

// scanMount lists every regular file under a mount as a mount-prefixed media
// path. Hidden files and sidecar records are not media.
func (a *Auditor) scanMount(mount config.Mount) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(mount.Dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		name := entry.Name()
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") && path != mount.Dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if a.sidecarExtension != "" && strings.HasSuffix(name, a.sidecarExtension) {
			return nil
		}
		rel, err := filepath.Rel(mount.Dir, path)
		if err != nil {
			return err
		}
		paths = append(paths, mount.Prefix+"/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
