package providers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bookRa/ragpipe/internal/document"
)

const MockName = "mock"

// Mock implements every collaborator port for testing. Behavior is
// configured per field; zero value is a well-behaved provider.
type Mock struct {
	// Latency is simulated per call.
	Latency time.Duration

	// FailAll makes every call return an error.
	FailAll bool

	// FailPages lists page numbers whose Parse/Clean calls error.
	FailPages map[int]bool

	// PartialPages lists page numbers whose Parse returns a partial result.
	PartialPages map[int]bool

	// ResponseText is the component text returned by Parse.
	ResponseText string

	// State
	parseCalls atomic.Int64
	cleanCalls atomic.Int64
	embedCalls atomic.Int64
}

// NewMock creates a mock with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		Latency:      time.Millisecond,
		ResponseText: "mock parsed text",
	}
}

// ParseCalls returns how many Parse calls were made.
func (m *Mock) ParseCalls() int { return int(m.parseCalls.Load()) }

// CleanCalls returns how many Clean calls were made.
func (m *Mock) CleanCalls() int { return int(m.cleanCalls.Load()) }

// EmbedCalls returns how many Embed calls were made.
func (m *Mock) EmbedCalls() int { return int(m.embedCalls.Load()) }

func (m *Mock) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.Latency):
		return nil
	}
}

// Parse implements Parser.
func (m *Mock) Parse(ctx context.Context, req ParseRequest) (*ParsedPage, error) {
	m.parseCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FailAll || m.FailPages[req.PageNumber] {
		return nil, fmt.Errorf("mock parse failure for page %d", req.PageNumber)
	}

	text := m.ResponseText
	if text == "" {
		text = fmt.Sprintf("parsed page %d", req.PageNumber)
	}

	page := &ParsedPage{
		Status: PageStatusSuccess,
		Components: []Component{
			{Type: "text", Text: text},
		},
	}
	if m.PartialPages[req.PageNumber] {
		page.Status = PageStatusPartial
		page.ErrorType = "mock_partial"
		page.ErrorDetails = "mock provider configured to return partial content"
	}
	return page, nil
}

// Clean implements Cleaner.
func (m *Mock) Clean(ctx context.Context, req CleanRequest) (*CleanedPage, error) {
	m.cleanCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FailAll {
		return nil, fmt.Errorf("mock clean failure")
	}
	return &CleanedPage{Segments: []string{"cleaned: " + req.Parsed.Text()}}, nil
}

// Summarize implements Summarizer.
func (m *Mock) Summarize(ctx context.Context, text string) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	if m.FailAll {
		return "", fmt.Errorf("mock summarize failure")
	}
	if len(text) > 32 {
		text = text[:32]
	}
	return "summary: " + text, nil
}

// Embed implements Embedder.
func (m *Mock) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	m.embedCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FailAll {
		return nil, fmt.Errorf("mock embed failure")
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), float64(i)}
	}
	return out, nil
}

// Ingest implements Ingestor: it fabricates one page per 1000 bytes of
// input size, minimum one.
func (m *Mock) Ingest(ctx context.Context, doc *document.Document) (*document.Document, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FailAll {
		return nil, fmt.Errorf("mock ingest failure")
	}
	if doc.SizeBytes == 0 {
		return nil, fmt.Errorf("empty document: %s", doc.Filename)
	}

	out := doc.Clone()
	pages := int(doc.SizeBytes/1000) + 1
	for i := 1; i <= pages; i++ {
		if err := out.AddPage(document.Page{Number: i, RawText: fmt.Sprintf("raw page %d", i)}); err != nil {
			return nil, err
		}
	}
	out.Status = document.StatusIngested
	return out, nil
}

// Chunk implements Chunker: one chunk per page.
func (m *Mock) Chunk(ctx context.Context, doc *document.Document) (*document.Document, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FailAll {
		return nil, fmt.Errorf("mock chunk failure")
	}

	out := doc.Clone()
	for i := range out.Pages {
		p := &out.Pages[i]
		text := p.CleanedText
		if text == "" {
			text = p.RawText
		}
		p.Chunks = []document.Chunk{{
			ID:          fmt.Sprintf("%s-p%d-c0", doc.ID, p.Number),
			PageNumber:  p.Number,
			Text:        text,
			StartOffset: 0,
			EndOffset:   len(text),
		}}
	}
	out.Status = document.StatusChunked
	return out, nil
}

// Interface compliance
var (
	_ Parser     = (*Mock)(nil)
	_ Cleaner    = (*Mock)(nil)
	_ Summarizer = (*Mock)(nil)
	_ Embedder   = (*Mock)(nil)
	_ Ingestor   = (*Mock)(nil)
	_ Chunker    = (*Mock)(nil)
)
