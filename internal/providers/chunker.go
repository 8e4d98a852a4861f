package providers

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/bookRa/ragpipe/internal/document"
)

// TextChunker is the default Chunker: fixed-size character windows with
// overlap, aligned to whitespace where possible.
type TextChunker struct {
	ChunkSize int // default 1200
	Overlap   int // default 150
}

// NewTextChunker creates a chunker with default sizing.
func NewTextChunker() *TextChunker {
	return &TextChunker{ChunkSize: 1200, Overlap: 150}
}

// Chunk implements Chunker. Pages with no text produce no chunks.
func (c *TextChunker) Chunk(ctx context.Context, doc *document.Document) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := c.ChunkSize
	if size <= 0 {
		size = 1200
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}

	out := doc.Clone()
	for i := range out.Pages {
		p := &out.Pages[i]
		text := p.CleanedText
		if text == "" {
			text = p.RawText
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		p.Chunks = nil
		for start := 0; start < len(text); {
			end := start + size
			if end > len(text) {
				end = len(text)
			} else if idx := strings.LastIndexByte(text[start:end], ' '); idx > size/2 {
				// Break on whitespace when one is available past the midpoint
				end = start + idx
			}

			p.Chunks = append(p.Chunks, document.Chunk{
				ID:          uuid.New().String(),
				PageNumber:  p.Number,
				Text:        text[start:end],
				StartOffset: start,
				EndOffset:   end,
			})

			if end == len(text) {
				break
			}
			start = end - overlap
		}
	}

	out.Status = document.StatusChunked
	return out, nil
}

var _ Chunker = (*TextChunker)(nil)
