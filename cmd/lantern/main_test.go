package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, err := runCLI(t, []string{"build", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("build: %v (stderr: %s)", err, stderr)
	}

	var report struct {
		FirstRun       bool     `json:"first_run"`
		Documents      int      `json:"documents"`
		ProcessedTasks int      `json:"processed_tasks"`
		Warnings       []string `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("parse report: %v\n%s", err, out)
	}
	if !report.FirstRun {
		t.Fatal("expected first run")
	}
	if report.Documents != 1 || report.ProcessedTasks != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", report.Warnings)
	}

	if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, "index.html")); err != nil {
		t.Fatalf("expected staged template: %v", err)
	}
}

func TestStatusCommandBeforeAndAfterBuild(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No previous build recorded")

	if _, _, err := runCLI(t, []string{"build", "--json"}, env.configPath); err != nil {
		t.Fatalf("build: %v", err)
	}

	out, _, err = runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status after build: %v", err)
	}
	var status struct {
		FirstRun    bool     `json:"first_run"`
		ChangedKeys []string `json:"changed_keys"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("parse status: %v\n%s", err, out)
	}
	if status.FirstRun {
		t.Fatal("expected persisted state after build")
	}
	if len(status.ChangedKeys) != 0 {
		t.Fatalf("expected no changed keys, got %v", status.ChangedKeys)
	}
}

func TestPlanCommandListsTasks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"plan", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var plan struct {
		Documents int `json:"documents"`
		Tasks     []struct {
			MediaPath string `json:"media_path"`
			Profile   string `json:"profile"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("parse plan: %v\n%s", err, out)
	}
	if plan.Documents != 1 || len(plan.Tasks) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.Tasks[0].MediaPath != "media/posts/cover.png" || plan.Tasks[0].Profile != "thumb" {
		t.Fatalf("unexpected task: %+v", plan.Tasks[0])
	}

	if _, err := os.Stat(env.cfg.Gallery.SourceDir); !os.IsNotExist(err) {
		t.Fatalf("plan must not create the gallery source dir, stat err %v", err)
	}
}

func TestAuditCommandReportsMissingSource(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := os.Remove(filepath.Join(env.cfg.Paths.ArticleMediaDir, "posts", "cover.png")); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	out, _, err := runCLI(t, []string{"audit"}, env.configPath)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	requireContains(t, out, "Missing sources (1):")
	requireContains(t, out, "media/posts/cover.png")
}
