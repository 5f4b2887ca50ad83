package coverage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"tshard/internal/config"
)

func newTestMerger(t *testing.T) (*CommandMerger, *config.Config) {
	t.Helper()
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	return NewCommandMerger(cfg), cfg
}

func TestArtifact(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()

	got := Artifact(cfg, 3, 17)
	if filepath.Base(got) != "shard-3-0017.cov" {
		t.Errorf("artifact name = %q, want shard-3-0017.cov", filepath.Base(got))
	}
	if filepath.Dir(got) != cfg.GetCoverageDir() {
		t.Errorf("artifact dir = %q, want %q", filepath.Dir(got), cfg.GetCoverageDir())
	}
}

func TestMerge_NoArtifacts(t *testing.T) {
	m, cfg := newTestMerger(t)

	err := m.Merge(context.Background())
	if err == nil {
		t.Fatal("expected error when no shard wrote coverage")
	}
	if !strings.Contains(err.Error(), "no coverage artifacts") {
		t.Errorf("error = %v, want artifact complaint", err)
	}

	// An empty coverage directory is the same as a missing one.
	if err := os.MkdirAll(cfg.GetCoverageDir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := m.Merge(context.Background()); err == nil {
		t.Fatal("expected error for empty coverage directory")
	}
}

func TestCommand(t *testing.T) {
	m, cfg := newTestMerger(t)
	dir := cfg.GetCoverageDir()

	name, args := m.command(dir)
	if name != "phpcov" {
		t.Errorf("tool = %q, want phpcov", name)
	}
	want := []string{"merge", dir, "--clover", filepath.Join(dir, "clover.xml")}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestListArtifacts(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"shard-1.cov", "shard-2.cov", "clover.xml", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	artifacts, err := listArtifacts(dir)
	if err != nil {
		t.Fatalf("listArtifacts() error = %v", err)
	}
	if len(artifacts) != 2 {
		t.Errorf("found %d artifacts, want 2 (.cov only): %v", len(artifacts), artifacts)
	}
}
