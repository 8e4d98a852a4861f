// Package providers defines the collaborator ports the pipeline core
// schedules calls against: parsing, cleaning, summarization, embedding, and
// the simple document transforms (ingest, chunk). Concrete implementations
// are swappable behind these interfaces.
package providers

import (
	"context"
	"strings"

	"github.com/bookRa/ragpipe/internal/document"
)

// PageStatus classifies the outcome of one parse call.
type PageStatus string

const (
	PageStatusSuccess PageStatus = "success"
	PageStatusPartial PageStatus = "partial"
	PageStatusFailed  PageStatus = "failed"
)

// Component is one typed piece of a structured parse (text, table, image).
type Component struct {
	Type     string         `json:"type"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ParseRequest carries one page to the parser.
type ParseRequest struct {
	DocumentID   string
	PageNumber   int
	RawText      string
	ArtifactPath string // empty when no rendered artifact exists
}

// ParsedPage is the structured result of a parse call.
type ParsedPage struct {
	Status       PageStatus  `json:"status"`
	ErrorType    string      `json:"error_type,omitempty"`
	ErrorDetails string      `json:"error_details,omitempty"`
	Components   []Component `json:"components"`
}

// Text joins the text of all components.
func (p *ParsedPage) Text() string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, len(p.Components))
	for _, c := range p.Components {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Parser converts one page into a structured representation.
type Parser interface {
	Parse(ctx context.Context, req ParseRequest) (*ParsedPage, error)
}

// CleanRequest carries one parsed page to the cleaner.
type CleanRequest struct {
	Parsed       *ParsedPage
	ArtifactPath string
	// Metadata is the parse metadata previously stored on the page; the
	// cleaner keys its strategy off it.
	Metadata map[string]any
}

// CleanedPage is the cleaner's output.
type CleanedPage struct {
	Segments []string `json:"segments"`
}

// Text joins the cleaned segments.
func (c *CleanedPage) Text() string {
	if c == nil {
		return ""
	}
	return strings.Join(c.Segments, "\n\n")
}

// Cleaner normalizes a parsed page into clean text segments.
type Cleaner interface {
	Clean(ctx context.Context, req CleanRequest) (*CleanedPage, error)
}

// Summarizer produces a short summary for a chunk of text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Embedder converts texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Ingestor turns an uploaded file into a document with pages.
type Ingestor interface {
	Ingest(ctx context.Context, doc *document.Document) (*document.Document, error)
}

// Chunker splits a document's cleaned pages into chunks.
type Chunker interface {
	Chunk(ctx context.Context, doc *document.Document) (*document.Document, error)
}
