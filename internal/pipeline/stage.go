// Package pipeline runs the six conversion stages for a single document in
// fixed order, recording timing and detail per stage.
package pipeline

import (
	"time"

	"github.com/bookRa/ragpipe/internal/document"
)

// Stage names, in execution order.
const (
	StageIngest    = "ingest"
	StageParse     = "parse"
	StageClean     = "clean"
	StageChunk     = "chunk"
	StageEnrich    = "enrich"
	StageVectorize = "vectorize"
)

// StageOrder is the fixed execution order of the pipeline stages.
var StageOrder = []string{StageIngest, StageParse, StageClean, StageChunk, StageEnrich, StageVectorize}

// stageTitles maps stage names to human-readable titles.
var stageTitles = map[string]string{
	StageIngest:    "Ingesting document",
	StageParse:     "Parsing pages",
	StageClean:     "Cleaning text",
	StageChunk:     "Chunking content",
	StageEnrich:    "Enriching chunks",
	StageVectorize: "Generating embeddings",
}

// StageRecord captures one completed stage for live progress and post-hoc
// inspection.
type StageRecord struct {
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Details     map[string]any `json:"details,omitempty"`
	Duration    time.Duration  `json:"duration"`
	CompletedAt time.Time      `json:"completed_at"`
}

// ProgressFunc is invoked after each stage completes, before the next stage
// starts. The document is the snapshot at stage completion.
type ProgressFunc func(stage StageRecord, doc *document.Document)

func newStageRecord(name string, details map[string]any, started time.Time) StageRecord {
	return StageRecord{
		Name:        name,
		Title:       stageTitles[name],
		Details:     details,
		Duration:    time.Since(started),
		CompletedAt: time.Now().UTC(),
	}
}
