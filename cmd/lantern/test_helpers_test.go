package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lantern/internal/config"
	"lantern/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"

	configPath := filepath.Join(testsupport.BaseDir(cfg), "lantern.toml")
	writeTestConfig(t, configPath, cfg)

	testsupport.WritePNG(t, filepath.Join(cfg.Paths.ArticleMediaDir, "posts", "cover.png"), 16, 12)
	post := `+++
slug = "first-post"

[hero_media]
path = "media/posts/cover.png"
alt_text = "the cover"
+++

Hello.
`
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ContentDir, "first-post.md"), []byte(post))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.TemplatesDir, "index.html"), []byte("<html>"))

	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	payload, err := cfg.Snapshot()
	if err != nil {
		t.Fatalf("serialize config: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
