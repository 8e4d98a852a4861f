package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/bookRa/ragpipe/internal/document"
)

// maxTextPageChars bounds how much raw text lands on one fabricated page
// for plain-text uploads.
const maxTextPageChars = 4000

// FileIngestor is the default Ingestor. PDFs get one empty page per
// physical page (content arrives later via visual parsing); text files are
// split into page-sized blocks.
type FileIngestor struct {
	logger *slog.Logger
}

// NewFileIngestor creates the default ingestor.
func NewFileIngestor(logger *slog.Logger) *FileIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileIngestor{logger: logger}
}

// Ingest implements Ingestor.
func (f *FileIngestor) Ingest(ctx context.Context, doc *document.Document) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(doc.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("source file not readable: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("empty file: %s", doc.Filename)
	}

	out := doc.Clone()
	out.SizeBytes = info.Size()

	switch strings.ToLower(doc.Type) {
	case "pdf":
		pageCount, err := api.PageCountFile(doc.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read PDF page count: %w", err)
		}
		if pageCount == 0 {
			return nil, fmt.Errorf("PDF has no pages: %s", doc.Filename)
		}
		for i := 1; i <= pageCount; i++ {
			if err := out.AddPage(document.Page{Number: i}); err != nil {
				return nil, err
			}
		}

	case "txt", "md":
		data, err := os.ReadFile(doc.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		for i, block := range splitText(string(data)) {
			if err := out.AddPage(document.Page{Number: i + 1, RawText: block}); err != nil {
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("unsupported document type: %s", doc.Type)
	}

	f.logger.Debug("ingested document", "document_id", doc.ID, "pages", len(out.Pages))
	out.Status = document.StatusIngested
	return out, nil
}

// splitText breaks text into page-sized blocks, preferring form feeds, then
// paragraph boundaries.
func splitText(text string) []string {
	if strings.Contains(text, "\f") {
		pages := []string{}
		for _, p := range strings.Split(text, "\f") {
			if strings.TrimSpace(p) != "" {
				pages = append(pages, p)
			}
		}
		if len(pages) > 0 {
			return pages
		}
	}

	paragraphs := strings.Split(text, "\n\n")
	pages := []string{}
	var current strings.Builder
	for _, p := range paragraphs {
		if current.Len() > 0 && current.Len()+len(p) > maxTextPageChars {
			pages = append(pages, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		pages = append(pages, current.String())
	}
	return pages
}

var _ Ingestor = (*FileIngestor)(nil)
