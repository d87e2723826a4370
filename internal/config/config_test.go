package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "lantern.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAnchorsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[paths]
content_dir = "content"
output_dir = "public"
`)

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if resolved != path {
		t.Fatalf("resolved path mismatch: %s", resolved)
	}
	if cfg.Paths.ContentDir != filepath.Join(dir, "content") {
		t.Fatalf("content dir not anchored: %s", cfg.Paths.ContentDir)
	}
	if cfg.Paths.OutputDir != filepath.Join(dir, "public") {
		t.Fatalf("output dir not anchored: %s", cfg.Paths.OutputDir)
	}
	// Untouched values keep defaults, anchored at the config dir.
	if cfg.Media.OutputDir != filepath.Join(dir, "media/derived") {
		t.Fatalf("derived dir not anchored: %s", cfg.Media.OutputDir)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, exists, err := Load(missing)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("config should not exist")
	}
	if len(cfg.Media.Profiles) != 2 {
		t.Fatalf("expected default profiles, got %d", len(cfg.Media.Profiles))
	}
	if cfg.Media.Workers != defaultWorkers {
		t.Fatalf("expected default workers, got %d", cfg.Media.Workers)
	}
}

func TestLoadRejectsDuplicateProfiles(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[[media.profiles]]
name = "thumb"
format = "webp"
quality = 75

[[media.profiles]]
name = "thumb"
format = "jpg"
quality = 80
`)
	if _, _, _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate profile") {
		t.Fatalf("expected duplicate profile error, got %v", err)
	}
}

func TestLoadRejectsUnknownProfileInGalleryMap(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[gallery.profile_map]
thumbnail = "missing"
`)
	if _, _, _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown profile") {
		t.Fatalf("expected unknown profile error, got %v", err)
	}
}

func TestLoadRejectsBadQuality(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[[media.profiles]]
name = "broken"
format = "jpg"
quality = 250
`)
	if _, _, _, err := Load(path); err == nil || !strings.Contains(err.Error(), "quality") {
		t.Fatalf("expected quality error, got %v", err)
	}
}

func TestNormalizeGalleryExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[gallery]
sidecar_extension = "JSON"
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gallery.SidecarExtension != ".json" {
		t.Fatalf("extension not normalized: %q", cfg.Gallery.SidecarExtension)
	}
}

func TestMediaMountsIncludeExtras(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[[mounts]]
prefix = "audio"
dir = "media/music"
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mounts := cfg.MediaMounts()
	if len(mounts) != 3 {
		t.Fatalf("expected 3 mounts, got %d", len(mounts))
	}
	if mounts[0].Prefix != "media" || mounts[1].Prefix != "gallery" {
		t.Fatalf("built-in mounts out of order: %+v", mounts)
	}
	if mounts[2].Prefix != "audio" || mounts[2].Dir != filepath.Join(dir, "media/music") {
		t.Fatalf("extra mount not anchored: %+v", mounts[2])
	}
}

func TestSnapshotIsStable(t *testing.T) {
	cfg := Default()
	first, err := cfg.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	second, err := cfg.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("snapshots differ across calls")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lantern.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample should exist")
	}
	if cfg.ProjectName != "Lantern Project" {
		t.Fatalf("unexpected project name: %q", cfg.ProjectName)
	}
}
