package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize(baseDir string) error {
	if err := c.normalizePaths(baseDir); err != nil {
		return err
	}
	if err := c.normalizeMedia(baseDir); err != nil {
		return err
	}
	if err := c.normalizeGallery(baseDir); err != nil {
		return err
	}
	if err := c.normalizeMounts(baseDir); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

// anchorPath expands tildes and anchors relative paths at the config file
// directory so builds behave the same from any working directory.
func anchorPath(baseDir, pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	expanded, err := expandTilde(pathValue)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	return filepath.Join(baseDir, expanded), nil
}

func expandTilde(pathValue string) (string, error) {
	if !strings.HasPrefix(pathValue, "~") {
		return pathValue, nil
	}
	return ExpandPath(pathValue)
}

func (c *Config) normalizePaths(baseDir string) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.content_dir", &c.Paths.ContentDir},
		{"paths.media_dir", &c.Paths.MediaDir},
		{"paths.article_media_dir", &c.Paths.ArticleMediaDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.templates_dir", &c.Paths.TemplatesDir},
		{"paths.cache_dir", &c.Paths.CacheDir},
	}
	for _, field := range fields {
		anchored, err := anchorPath(baseDir, *field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = anchored
	}
	return nil
}

func (c *Config) normalizeMedia(baseDir string) error {
	anchored, err := anchorPath(baseDir, c.Media.OutputDir)
	if err != nil {
		return fmt.Errorf("media.output_dir: %w", err)
	}
	c.Media.OutputDir = anchored

	if c.Media.Workers <= 0 {
		c.Media.Workers = defaultWorkers
	}
	for i := range c.Media.Profiles {
		profile := &c.Media.Profiles[i]
		profile.Name = strings.TrimSpace(profile.Name)
		profile.Format = strings.ToLower(strings.TrimSpace(profile.Format))
		if profile.Format == "jpeg" {
			profile.Format = "jpg"
		}
		if profile.Quality == 0 {
			profile.Quality = 80
		}
	}
	if c.Media.Watermark.Scale <= 0 {
		c.Media.Watermark.Scale = defaultWatermarkScale
	}
	return nil
}

func (c *Config) normalizeGallery(baseDir string) error {
	anchored, err := anchorPath(baseDir, c.Gallery.SourceDir)
	if err != nil {
		return fmt.Errorf("gallery.source_dir: %w", err)
	}
	c.Gallery.SourceDir = anchored

	if strings.TrimSpace(c.Gallery.CollectionFilename) == "" {
		c.Gallery.CollectionFilename = defaultCollectionFilename
	}
	ext := strings.ToLower(strings.TrimSpace(c.Gallery.SidecarExtension))
	if ext == "" {
		ext = defaultSidecarExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Gallery.SidecarExtension = ext
	return nil
}

func (c *Config) normalizeMounts(baseDir string) error {
	for i := range c.Mounts {
		mount := &c.Mounts[i]
		mount.Prefix = strings.Trim(strings.TrimSpace(mount.Prefix), "/")
		anchored, err := anchorPath(baseDir, mount.Dir)
		if err != nil {
			return fmt.Errorf("mounts[%d].dir: %w", i, err)
		}
		mount.Dir = anchored
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
