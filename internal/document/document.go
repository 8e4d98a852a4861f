// Package document defines the core document model that flows through the
// conversion pipeline. Stage functions never mutate a document in place;
// they clone it, modify the clone, and return the new snapshot.
package document

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Status tracks how far a document has progressed through the pipeline.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusIngested   Status = "ingested"
	StatusParsed     Status = "parsed"
	StatusCleaned    Status = "cleaned"
	StatusChunked    Status = "chunked"
	StatusEnriched   Status = "enriched"
	StatusVectorized Status = "vectorized"
	StatusFailed     Status = "failed"
)

// Chunk is a retrievable slice of a page's cleaned text.
type Chunk struct {
	ID          string         `json:"id"`
	PageNumber  int            `json:"page_number"`
	Text        string         `json:"text"`
	StartOffset int            `json:"start_offset"`
	EndOffset   int            `json:"end_offset"`
	Summary     string         `json:"summary,omitempty"`
	Embedding   []float64      `json:"embedding,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Page is one page of a document. Page numbers are 1-indexed, unique within
// a document, and stable once assigned.
type Page struct {
	Number      int            `json:"number"`
	RawText     string         `json:"raw_text,omitempty"`
	CleanedText string         `json:"cleaned_text,omitempty"`
	Chunks      []Chunk        `json:"chunks,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// PixmapInfo describes one rendered page artifact. Ephemeral: keyed by
// (document id, page number) and never shared across documents.
type PixmapInfo struct {
	PageNumber int    `json:"page_number"`
	Path       string `json:"path"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Document is the unit of work for the pipeline. It is owned exclusively by
// the run processing it; superseded copies are discarded.
type Document struct {
	ID        string         `json:"id"`
	Filename  string         `json:"filename"`
	Type      string         `json:"type"`
	SizeBytes int64          `json:"size_bytes"`
	Status    Status         `json:"status"`
	Pages     []Page         `json:"pages,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// SourcePath is where the original upload lives on disk. Not serialized
	// into run snapshots beyond provenance.
	SourcePath string `json:"source_path,omitempty"`
}

// New creates a document for an uploaded file. Type is derived from the
// filename extension when not provided.
func New(id, filename, sourcePath string, size int64) *Document {
	docType := strings.TrimPrefix(filepath.Ext(filename), ".")
	return &Document{
		ID:         id,
		Filename:   filename,
		Type:       docType,
		SizeBytes:  size,
		Status:     StatusUploaded,
		SourcePath: sourcePath,
		Metadata:   map[string]any{},
	}
}

// Clone returns a deep copy. Pages, chunks, and metadata maps are copied so
// the clone can be mutated without affecting the original.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Metadata = cloneMap(d.Metadata)
	if d.Pages != nil {
		out.Pages = make([]Page, len(d.Pages))
		for i, p := range d.Pages {
			out.Pages[i] = p.Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the page.
func (p Page) Clone() Page {
	out := p
	out.Metadata = cloneMap(p.Metadata)
	if p.Chunks != nil {
		out.Chunks = make([]Chunk, len(p.Chunks))
		for i, c := range p.Chunks {
			cc := c
			cc.Metadata = cloneMap(c.Metadata)
			if c.Embedding != nil {
				cc.Embedding = append([]float64(nil), c.Embedding...)
			}
			out.Chunks[i] = cc
		}
	}
	return out
}

// PageByNumber returns the index of the page with the given number, or -1.
func (d *Document) PageByNumber(num int) int {
	for i := range d.Pages {
		if d.Pages[i].Number == num {
			return i
		}
	}
	return -1
}

// AddPage appends a page, enforcing unique page numbers.
func (d *Document) AddPage(p Page) error {
	if d.PageByNumber(p.Number) >= 0 {
		return fmt.Errorf("duplicate page number %d in document %s", p.Number, d.ID)
	}
	d.Pages = append(d.Pages, p)
	return nil
}

// ChunkCount returns the total number of chunks across all pages.
func (d *Document) ChunkCount() int {
	n := 0
	for i := range d.Pages {
		n += len(d.Pages[i].Chunks)
	}
	return n
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
