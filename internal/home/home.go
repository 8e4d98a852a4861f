package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the ragpipe home directory.
	DefaultDirName = ".ragpipe"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the ragpipe home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.ragpipe).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, p := range []string{d.ArtifactsRoot(), d.BatchesDir(), d.RunsDir(), d.UploadsDir()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// UploadsDir returns the directory holding original uploaded files.
func (d *Dir) UploadsDir() string {
	return filepath.Join(d.path, "uploads")
}

// ArtifactsRoot returns the root directory for rendered page artifacts.
func (d *Dir) ArtifactsRoot() string {
	return filepath.Join(d.path, "artifacts")
}

// ArtifactsDir returns the artifact directory for one document.
func (d *Dir) ArtifactsDir(docID string) string {
	return filepath.Join(d.ArtifactsRoot(), docID)
}

// ArtifactPath returns the path to a rendered page image.
// Page numbers are 1-indexed.
func (d *Dir) ArtifactPath(docID string, pageNum int) string {
	return filepath.Join(d.ArtifactsDir(docID), fmt.Sprintf("page_%04d.png", pageNum))
}

// EnsureArtifactsDir creates the artifact directory for a document.
func (d *Dir) EnsureArtifactsDir(docID string) error {
	return os.MkdirAll(d.ArtifactsDir(docID), 0o755)
}

// RemoveArtifacts deletes all rendered artifacts for a document.
func (d *Dir) RemoveArtifacts(docID string) error {
	return os.RemoveAll(d.ArtifactsDir(docID))
}

// BatchesDir returns the root directory for batch records.
func (d *Dir) BatchesDir() string {
	return filepath.Join(d.path, "batches")
}

// BatchDir returns the directory for one batch.
func (d *Dir) BatchDir(batchID string) string {
	return filepath.Join(d.BatchesDir(), batchID)
}

// BatchFile returns the path to a batch's aggregate record.
func (d *Dir) BatchFile(batchID string) string {
	return filepath.Join(d.BatchDir(batchID), "batch.json")
}

// BatchJobsDir returns the directory holding per-document job records.
func (d *Dir) BatchJobsDir(batchID string) string {
	return filepath.Join(d.BatchDir(batchID), "jobs")
}

// BatchJobFile returns the path to one document job record.
func (d *Dir) BatchJobFile(batchID, docID string) string {
	return filepath.Join(d.BatchJobsDir(batchID), docID+".json")
}

// RunsDir returns the directory for pipeline run records.
func (d *Dir) RunsDir() string {
	return filepath.Join(d.path, "runs")
}

// RunFile returns the path to one run record.
func (d *Dir) RunFile(runID string) string {
	return filepath.Join(d.RunsDir(), runID+".json")
}
