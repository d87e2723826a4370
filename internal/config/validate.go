package config

import (
	"errors"
	"fmt"
	"strings"
)

var supportedFormats = map[string]struct{}{
	"jpg":  {},
	"png":  {},
	"webp": {},
	"gif":  {},
	"tiff": {},
	"bmp":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProfiles(); err != nil {
		return err
	}
	if err := c.validateWatermark(); err != nil {
		return err
	}
	if err := c.validateGallery(); err != nil {
		return err
	}
	if err := c.validateMounts(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must be set")
	}
	if strings.TrimSpace(c.Media.OutputDir) == "" {
		return errors.New("media.output_dir must be set")
	}
	return nil
}

func (c *Config) validateProfiles() error {
	seen := make(map[string]struct{}, len(c.Media.Profiles))
	for i, profile := range c.Media.Profiles {
		if profile.Name == "" {
			return fmt.Errorf("media.profiles[%d].name must be set", i)
		}
		if _, dup := seen[profile.Name]; dup {
			return fmt.Errorf("media.profiles: duplicate profile name %q", profile.Name)
		}
		seen[profile.Name] = struct{}{}
		if profile.Width < 0 || profile.Height < 0 {
			return fmt.Errorf("media.profiles[%q]: dimensions must not be negative", profile.Name)
		}
		if profile.Quality < 1 || profile.Quality > 100 {
			return fmt.Errorf("media.profiles[%q]: quality must be between 1 and 100", profile.Name)
		}
		if _, ok := supportedFormats[profile.Format]; !ok {
			return fmt.Errorf("media.profiles[%q]: unsupported format %q", profile.Name, profile.Format)
		}
	}
	return nil
}

func (c *Config) validateWatermark() error {
	wm := c.Media.Watermark
	if !wm.Enabled {
		return nil
	}
	if strings.TrimSpace(wm.Text) == "" {
		return errors.New("media.watermark.text must be set when watermarking is enabled")
	}
	if wm.Opacity < 0 || wm.Opacity > 255 {
		return errors.New("media.watermark.opacity must be between 0 and 255")
	}
	if wm.SpacingRatio < 0 || wm.SpacingRatio > 4 {
		return errors.New("media.watermark.spacing_ratio must be between 0 and 4")
	}
	return nil
}

func (c *Config) validateGallery() error {
	if !c.Gallery.Enabled {
		return nil
	}
	profiles := make(map[string]struct{}, len(c.Media.Profiles))
	for _, profile := range c.Media.Profiles {
		profiles[profile.Name] = struct{}{}
	}
	for role, name := range c.Gallery.ProfileMap {
		if strings.TrimSpace(role) == "" {
			return errors.New("gallery.profile_map: empty role name")
		}
		if _, ok := profiles[name]; !ok {
			return fmt.Errorf("gallery.profile_map[%q]: unknown profile %q", role, name)
		}
	}
	return nil
}

func (c *Config) validateMounts() error {
	seen := map[string]struct{}{"media": {}, "gallery": {}}
	for i, mount := range c.Mounts {
		if mount.Prefix == "" {
			return fmt.Errorf("mounts[%d].prefix must be set", i)
		}
		if strings.Contains(mount.Prefix, "/") {
			return fmt.Errorf("mounts[%d].prefix must be a single path segment", i)
		}
		if _, dup := seen[mount.Prefix]; dup {
			return fmt.Errorf("mounts[%d]: duplicate prefix %q", i, mount.Prefix)
		}
		seen[mount.Prefix] = struct{}{}
		if strings.TrimSpace(mount.Dir) == "" {
			return fmt.Errorf("mounts[%d].dir must be set", i)
		}
	}
	return nil
}
