package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the watched and generated directory layout.
type Paths struct {
	ContentDir      string `toml:"content_dir"`
	MediaDir        string `toml:"media_dir"`
	ArticleMediaDir string `toml:"article_media_dir"`
	OutputDir       string `toml:"output_dir"`
	TemplatesDir    string `toml:"templates_dir"`
	CacheDir        string `toml:"cache_dir"`
}

// Profile is a named derivative output specification.
type Profile struct {
	Name    string `toml:"name"`
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
	Format  string `toml:"format"`
	Quality int    `toml:"quality"`
}

// Watermark controls the optional text-tiling overlay on derivatives.
type Watermark struct {
	Enabled      bool    `toml:"enabled"`
	Text         string  `toml:"text"`
	Opacity      int     `toml:"opacity"`
	Color        string  `toml:"color"`
	Angle        float64 `toml:"angle"`
	SpacingRatio float64 `toml:"spacing_ratio"`
	Scale        int     `toml:"scale"`
	MinSize      int     `toml:"min_size"`
}

// Embed controls best-effort copyright/license embedding in outputs.
type Embed struct {
	Enabled   bool   `toml:"enabled"`
	Artist    string `toml:"artist"`
	Copyright string `toml:"copyright"`
	License   string `toml:"license"`
	URL       string `toml:"url"`
}

// Media contains derivative generation settings.
type Media struct {
	OutputDir string    `toml:"output_dir"`
	Profiles  []Profile `toml:"profiles"`
	Watermark Watermark `toml:"watermark"`
	Embed     Embed     `toml:"embed_metadata"`
	// MaxPixels caps decoded image size (width*height). Zero disables the guard.
	MaxPixels int64 `toml:"max_pixels"`
	Workers   int   `toml:"workers"`
}

// Gallery contains sidecar lifecycle settings for image collections.
type Gallery struct {
	Enabled            bool              `toml:"enabled"`
	SourceDir          string            `toml:"source_dir"`
	CollectionFilename string            `toml:"collection_filename"`
	SidecarExtension   string            `toml:"sidecar_extension"`
	Cleanup            bool              `toml:"cleanup"`
	ProfileMap         map[string]string `toml:"profile_map"`
}

// MountSpec adds an extra media mount beyond the built-in ones.
type MountSpec struct {
	Prefix string `toml:"prefix"`
	Dir    string `toml:"dir"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lantern.
//
// Configuration sections by subsystem:
//   - Paths: watched content/media/template directories and generated roots
//   - Media: derivative profiles, watermark, metadata embedding, worker count
//   - Gallery: sidecar filenames and the role-to-profile map
//   - Mounts: extra media path prefixes beyond media/ and gallery/
//   - Logging: log format and level
type Config struct {
	ProjectName string      `toml:"project_name"`
	Paths       Paths       `toml:"paths"`
	Media       Media       `toml:"media"`
	Gallery     Gallery     `toml:"gallery"`
	Mounts      []MountSpec `toml:"mounts"`
	Logging     Logging     `toml:"logging"`
}

// Mount pairs a media path prefix with its absolute base directory.
type Mount struct {
	Prefix string
	Dir    string
}

// MediaMounts returns the ordered mount table used to resolve media
// references. Built-in mounts come first; configured extras follow in
// declaration order.
func (c *Config) MediaMounts() []Mount {
	mounts := []Mount{
		{Prefix: "media", Dir: c.Paths.ArticleMediaDir},
		{Prefix: "gallery", Dir: c.Gallery.SourceDir},
	}
	for _, extra := range c.Mounts {
		mounts = append(mounts, Mount{Prefix: extra.Prefix, Dir: extra.Dir})
	}
	return mounts
}

// DerivedRoot returns the absolute derivative output directory.
func (c *Config) DerivedRoot() string {
	return c.Media.OutputDir
}

// Snapshot serializes the effective configuration so the build tracker can
// fingerprint config value changes independent of file formatting.
func (c *Config) Snapshot() ([]byte, error) {
	payload, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("serialize config snapshot: %w", err)
	}
	return payload, nil
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/lantern/config.toml")
}

// Load locates, parses, and validates a configuration file. Relative paths in
// the file are anchored at the directory containing it. The returned config
// has every path field expanded and absolute.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	baseDir := filepath.Dir(resolvedPath)
	if !exists {
		if baseDir, err = os.Getwd(); err != nil {
			return nil, "", false, fmt.Errorf("resolve working directory: %w", err)
		}
	}

	if err := cfg.normalize(baseDir); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			candidate := filepath.Join(expanded, "lantern.toml")
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true, nil
			}
			return candidate, false, nil
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("lantern.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return projectPath, false, nil
}

// EnsureDirectories creates the generated directories a build needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.CacheDir, c.Media.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves ~ and returns a cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
