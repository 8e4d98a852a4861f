package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_DefaultPath(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if filepath.Base(d.Path()) != DefaultDirName {
		t.Errorf("Path() = %s, want basename %s", d.Path(), DefaultDirName)
	}
}

func TestEnsureExists(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), "rp"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if d.Exists() {
		t.Error("Exists() = true before EnsureExists")
	}

	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}

	for _, p := range []string{d.ArtifactsRoot(), d.BatchesDir(), d.RunsDir(), d.UploadsDir()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("directory %s not created: %v", p, err)
		}
	}
}

func TestPaths(t *testing.T) {
	d, _ := New("/tmp/rp-test")

	if got := d.ArtifactPath("doc1", 3); got != "/tmp/rp-test/artifacts/doc1/page_0003.png" {
		t.Errorf("ArtifactPath() = %s", got)
	}
	if got := d.BatchFile("b1"); got != "/tmp/rp-test/batches/b1/batch.json" {
		t.Errorf("BatchFile() = %s", got)
	}
	if got := d.BatchJobFile("b1", "d1"); got != "/tmp/rp-test/batches/b1/jobs/d1.json" {
		t.Errorf("BatchJobFile() = %s", got)
	}
	if got := d.RunFile("r1"); got != "/tmp/rp-test/runs/r1.json" {
		t.Errorf("RunFile() = %s", got)
	}
}
