package testsupport

import (
	"path/filepath"
	"testing"

	"lantern/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults a single small jpg profile so tests never depend on the cgo
// webp encoder, and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ContentDir = filepath.Join(base, "content")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.ArticleMediaDir = filepath.Join(base, "content", "media")
	cfgVal.Paths.OutputDir = filepath.Join(base, "site")
	cfgVal.Paths.TemplatesDir = filepath.Join(base, "web")
	cfgVal.Paths.CacheDir = filepath.Join(base, ".cache")
	cfgVal.Media.OutputDir = filepath.Join(base, "media", "derived")
	cfgVal.Gallery.SourceDir = filepath.Join(base, "media", "gallery")
	cfgVal.Media.Profiles = []config.Profile{
		{Name: "thumb", Width: 8, Height: 8, Format: "jpg", Quality: 80},
	}
	cfgVal.Gallery.ProfileMap = map[string]string{
		"thumbnail": "thumb",
		"web":       "thumb",
		"download":  "thumb",
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProfiles replaces the derivative profile list on the test config.
func WithProfiles(profiles ...config.Profile) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.Profiles = profiles
	}
}

// WithProfileMap replaces the gallery role-to-profile map on the test config.
func WithProfileMap(m map[string]string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gallery.ProfileMap = m
	}
}

// WithGalleryDisabled turns off gallery processing on the test config.
func WithGalleryDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gallery.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ContentDir)
}
