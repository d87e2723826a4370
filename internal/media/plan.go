package media

import (
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"lantern/internal/config"
	"lantern/internal/content"
	"lantern/internal/logging"
)

// transcodableExtensions lists the image types the pipeline re-encodes.
// Anything else referenced by a document is copied through verbatim.
var transcodableExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
	".tiff": {},
	".bmp":  {},
}

// Task is one unit of derivative work, unique per (media path, profile name)
// within a plan. Roles and documents accumulate as more references fold into
// the same task.
type Task struct {
	MediaPath   string
	Source      string
	Destination string
	Profile     config.Profile

	roles     map[string]struct{}
	documents map[string]struct{}
}

func (t *Task) addUse(role, slug string) {
	if role != "" {
		t.roles[role] = struct{}{}
	}
	if slug != "" {
		t.documents[slug] = struct{}{}
	}
}

// Roles returns the sorted set of roles under which this media is referenced.
func (t *Task) Roles() []string {
	return sortedKeys(t.roles)
}

// Documents returns the sorted slugs of every document referencing this media.
func (t *Task) Documents() []string {
	return sortedKeys(t.documents)
}

// Plan aggregates derivative tasks and passthrough assets for one run.
type Plan struct {
	tasks  map[string]*Task
	static map[string]string
}

// Tasks returns the plan's tasks sorted by media path, then profile name, so
// two runs over the same inputs produce identical orderings.
func (p *Plan) Tasks() []*Task {
	tasks := make([]*Task, 0, len(p.tasks))
	for _, task := range p.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].MediaPath == tasks[j].MediaPath {
			return tasks[i].Profile.Name < tasks[j].Profile.Name
		}
		return tasks[i].MediaPath < tasks[j].MediaPath
	})
	return tasks
}

// StaticAssets returns passthrough assets sorted by media path.
func (p *Plan) StaticAssets() []StaticAsset {
	assets := make([]StaticAsset, 0, len(p.static))
	for mediaPath, source := range p.static {
		assets = append(assets, StaticAsset{MediaPath: mediaPath, Source: source})
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].MediaPath < assets[j].MediaPath
	})
	return assets
}

// TaskCount reports the number of derivative tasks in the plan.
func (p *Plan) TaskCount() int { return len(p.tasks) }

// StaticCount reports the number of passthrough assets in the plan.
func (p *Plan) StaticCount() int { return len(p.static) }

// StaticAsset pairs a media path with its resolved absolute source.
type StaticAsset struct {
	MediaPath string
	Source    string
}

// Planner resolves document media references into a deduplicated plan.
type Planner struct {
	mounts      []config.Mount
	profiles    []config.Profile
	derivedRoot string
	logger      *slog.Logger
}

// NewPlanner builds a planner from the configured mount table and profiles.
func NewPlanner(cfg *config.Config, logger *slog.Logger) *Planner {
	return &Planner{
		mounts:      cfg.MediaMounts(),
		profiles:    cfg.Media.Profiles,
		derivedRoot: cfg.DerivedRoot(),
		logger:      logging.NewComponentLogger(logger, "planner"),
	}
}

// Collect walks every document reference in document order and produces the
// deduplicated plan. References that resolve through no mount are logged and
// dropped; they never become tasks.
func (p *Planner) Collect(documents []content.Document) *Plan {
	plan := &Plan{
		tasks:  make(map[string]*Task),
		static: make(map[string]string),
	}

	for i := range documents {
		document := &documents[i]
		for _, ref := range document.References() {
			mediaPath := normalizeMediaPath(ref.Reference.Path)
			if mediaPath == "" {
				continue
			}
			source, ok := p.resolve(mediaPath)
			if !ok {
				logging.WarnWithImpact(p.logger,
					"media reference matches no mount",
					"reference excluded from the plan",
					logging.String("media_path", mediaPath),
					logging.String("document", document.Slug),
				)
				continue
			}
			if p.transcodable(mediaPath) {
				p.addTasks(plan, mediaPath, source, ref.Role, document.Slug)
			} else {
				plan.static[mediaPath] = source
			}
		}
	}
	return plan
}

func (p *Planner) addTasks(plan *Plan, mediaPath, source, role, slug string) {
	for _, profile := range p.profiles {
		key := mediaPath + "\x00" + profile.Name
		task, ok := plan.tasks[key]
		if !ok {
			task = &Task{
				MediaPath:   mediaPath,
				Source:      source,
				Destination: derivativeDestination(p.derivedRoot, mediaPath, profile),
				Profile:     profile,
				roles:       make(map[string]struct{}),
				documents:   make(map[string]struct{}),
			}
			plan.tasks[key] = task
		}
		task.addUse(role, slug)
	}
}

// transcodable reports whether the path should be re-encoded: a recognized
// image extension and at least one configured profile.
func (p *Planner) transcodable(mediaPath string) bool {
	if len(p.profiles) == 0 {
		return false
	}
	_, ok := transcodableExtensions[strings.ToLower(path.Ext(mediaPath))]
	return ok
}

// resolve maps a normalized media path onto an absolute source path through
// the first matching mount prefix.
func (p *Planner) resolve(mediaPath string) (string, bool) {
	prefix, remainder, found := strings.Cut(mediaPath, "/")
	if !found || remainder == "" {
		return "", false
	}
	for _, mount := range p.mounts {
		if mount.Prefix == prefix {
			return joinFilePath(mount.Dir, remainder), true
		}
	}
	return "", false
}

// normalizeMediaPath converts separators to slashes and strips scheme-like
// leading slashes.
func normalizeMediaPath(raw string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")
	return strings.TrimLeft(cleaned, "/")
}

// derivativeDestination computes
// <root>/<profile>/<original dir>/<stem>.<profile format>.
func derivativeDestination(root, mediaPath string, profile config.Profile) string {
	dir := path.Dir(mediaPath)
	stem := strings.TrimSuffix(path.Base(mediaPath), path.Ext(mediaPath))
	rel := path.Join(profile.Name, dir, stem+"."+profile.Format)
	return joinFilePath(root, rel)
}

// joinFilePath joins a slash-form relative path onto an absolute base using
// native separators.
func joinFilePath(base, rel string) string {
	return filepath.Join(base, filepath.FromSlash(rel))
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
