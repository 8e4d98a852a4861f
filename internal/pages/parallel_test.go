package pages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bookRa/ragpipe/internal/document"
	"github.com/bookRa/ragpipe/internal/providers"
	"github.com/bookRa/ragpipe/internal/ratelimit"
	"github.com/bookRa/ragpipe/internal/render"
)

func testDoc(pages int) *document.Document {
	doc := document.New("doc1", "test.txt", "/tmp/test.txt", 5000)
	for i := 1; i <= pages; i++ {
		doc.Pages = append(doc.Pages, document.Page{
			Number:  i,
			RawText: fmt.Sprintf("original text of page %d", i),
		})
	}
	return doc
}

func newTestProcessor(t *testing.T, mock *providers.Mock) *Processor {
	t.Helper()
	p, err := NewProcessor(Config{
		Parser:     mock,
		Cleaner:    mock,
		Limiter:    ratelimit.New(60000, 0),
		MaxWorkers: 4,
		Parallel:   true,
		Retries:    1,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	return p
}

func TestParsePages_AllSucceed(t *testing.T) {
	mock := providers.NewMock()
	mock.ResponseText = "" // per-page text
	p := newTestProcessor(t, mock)

	doc := testDoc(3)
	out, err := p.ParsePages(context.Background(), doc)
	if err != nil {
		t.Fatalf("ParsePages() error = %v", err)
	}

	if out == doc {
		t.Fatal("ParsePages returned the input document, want a new snapshot")
	}
	for i, page := range out.Pages {
		want := fmt.Sprintf("parsed page %d", i+1)
		if page.RawText != want {
			t.Errorf("page %d RawText = %q, want %q", i+1, page.RawText, want)
		}
		if status := page.Metadata["parse_status"]; status != "success" {
			t.Errorf("page %d parse_status = %v", i+1, status)
		}
	}
	if out.Status != document.StatusParsed {
		t.Errorf("Status = %s, want %s", out.Status, document.StatusParsed)
	}
}

func TestParsePages_FailedPageKeepsPriorContent(t *testing.T) {
	mock := providers.NewMock()
	mock.FailPages = map[int]bool{3: true}
	p := newTestProcessor(t, mock)

	doc := testDoc(5)
	out, err := p.ParsePages(context.Background(), doc)
	if err != nil {
		t.Fatalf("ParsePages() error = %v, want nil (per-page isolation)", err)
	}

	if len(out.Pages) != 5 {
		t.Fatalf("len(Pages) = %d, want 5", len(out.Pages))
	}

	for _, page := range out.Pages {
		if page.Number == 3 {
			if page.RawText != "original text of page 3" {
				t.Errorf("failed page content changed: %q", page.RawText)
			}
			if _, ok := page.Metadata["parse_error"]; !ok {
				t.Error("failed page missing parse_error metadata")
			}
			continue
		}
		if strings.HasPrefix(page.RawText, "original") {
			t.Errorf("page %d was not updated", page.Number)
		}
	}

	// Input document untouched
	if doc.Pages[0].RawText != "original text of page 1" {
		t.Error("input document was mutated")
	}
}

func TestParsePages_RenderFailureRecordsDegradation(t *testing.T) {
	mock := providers.NewMock()
	mock.ResponseText = "" // per-page text
	p, err := NewProcessor(Config{
		Parser:     mock,
		Cleaner:    mock,
		Limiter:    ratelimit.New(60000, 0),
		Renderer:   render.New(render.Config{}),
		Parallel:   true,
		Visual:     true,
		Retries:    1,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	doc := document.New("doc1", "test.pdf", filepath.Join(t.TempDir(), "missing.pdf"), 5000)
	doc.Pages = append(doc.Pages, document.Page{Number: 1, RawText: "page one"})

	out, err := p.ParsePages(context.Background(), doc)
	if err != nil {
		t.Fatalf("ParsePages() error = %v", err)
	}

	// Text-only parsing still proceeds.
	if out.Pages[0].RawText != "parsed page 1" {
		t.Errorf("page 1 RawText = %q, want parsed text", out.Pages[0].RawText)
	}

	// The degradation is visible on the snapshot, not the input.
	if degraded, _ := out.Metadata["render_degraded"].(bool); !degraded {
		t.Error("snapshot metadata missing render_degraded marker")
	}
	if msg, _ := out.Metadata["render_error"].(string); msg == "" {
		t.Error("snapshot metadata missing render_error detail")
	}
	if _, ok := doc.Metadata["render_degraded"]; ok {
		t.Error("input document metadata was mutated")
	}
}

func TestParsePages_SequentialFallback(t *testing.T) {
	mock := providers.NewMock()
	p, err := NewProcessor(Config{
		Parser:   mock,
		Limiter:  ratelimit.New(60000, 0),
		Parallel: false,
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	out, err := p.ParsePages(context.Background(), testDoc(2))
	if err != nil {
		t.Fatalf("ParsePages() error = %v", err)
	}
	if len(out.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2", len(out.Pages))
	}
	if out.Pages[0].RawText != "mock parsed text" {
		t.Errorf("page 1 RawText = %q", out.Pages[0].RawText)
	}
}

func TestParsePages_NoPagesParsesWholeDocument(t *testing.T) {
	mock := providers.NewMock()
	p := newTestProcessor(t, mock)

	doc := document.New("doc1", "test.txt", "/tmp/t.txt", 100)
	doc.Metadata["raw_text"] = "whole document text"

	out, err := p.ParsePages(context.Background(), doc)
	if err != nil {
		t.Fatalf("ParsePages() error = %v", err)
	}
	if len(out.Pages) != 1 || out.Pages[0].Number != 1 {
		t.Fatalf("Pages = %+v, want single page 1", out.Pages)
	}
}

func TestCleanPages(t *testing.T) {
	mock := providers.NewMock()
	p := newTestProcessor(t, mock)

	doc := testDoc(3)
	parsed, err := p.ParsePages(context.Background(), doc)
	if err != nil {
		t.Fatalf("ParsePages() error = %v", err)
	}

	out, err := p.CleanPages(context.Background(), parsed)
	if err != nil {
		t.Fatalf("CleanPages() error = %v", err)
	}

	for _, page := range out.Pages {
		if !strings.HasPrefix(page.CleanedText, "cleaned:") {
			t.Errorf("page %d CleanedText = %q, want cleaner output", page.Number, page.CleanedText)
		}
	}
	if out.Status != document.StatusCleaned {
		t.Errorf("Status = %s, want %s", out.Status, document.StatusCleaned)
	}
}

func TestCleanPages_NoCleanerNormalizesOnly(t *testing.T) {
	mock := providers.NewMock()
	p, err := NewProcessor(Config{
		Parser:   mock,
		Limiter:  ratelimit.New(60000, 0),
		Parallel: true,
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}

	doc := testDoc(1)
	doc.Pages[0].RawText = "line one\r\n\n\n\n\nline two\x00"

	out, err := p.CleanPages(context.Background(), doc)
	if err != nil {
		t.Fatalf("CleanPages() error = %v", err)
	}
	want := "line one\n\nline two"
	if out.Pages[0].CleanedText != want {
		t.Errorf("CleanedText = %q, want %q", out.Pages[0].CleanedText, want)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"crlf", "a\r\nb", "a\nb"},
		{"control chars", "a\x01\x02b", "ab"},
		{"blank line runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"surrounding space", "  text  ", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeText(tt.input); got != tt.want {
				t.Errorf("normalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestChain_FirstSuccessWins(t *testing.T) {
	calls := []string{}
	chain := Chain{
		{Name: "a", Run: func(context.Context, providers.ParseRequest) (*providers.ParsedPage, error) {
			calls = append(calls, "a")
			return nil, fmt.Errorf("a is down")
		}},
		{Name: "b", Run: func(context.Context, providers.ParseRequest) (*providers.ParsedPage, error) {
			calls = append(calls, "b")
			return &providers.ParsedPage{Status: providers.PageStatusSuccess}, nil
		}},
		{Name: "c", Run: func(context.Context, providers.ParseRequest) (*providers.ParsedPage, error) {
			calls = append(calls, "c")
			return &providers.ParsedPage{Status: providers.PageStatusSuccess}, nil
		}},
	}

	page, attempted, err := chain.Parse(context.Background(), providers.ParseRequest{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if page.Status != providers.PageStatusSuccess {
		t.Errorf("Status = %s", page.Status)
	}
	if len(attempted) != 2 || attempted[0] != "a" || attempted[1] != "b" {
		t.Errorf("attempted = %v, want [a b]", attempted)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v, strategy c should not run", calls)
	}
}

func TestChain_FailedStatusTriesNext(t *testing.T) {
	chain := Chain{
		{Name: "visual", Run: func(context.Context, providers.ParseRequest) (*providers.ParsedPage, error) {
			return &providers.ParsedPage{Status: providers.PageStatusFailed, ErrorType: "guardrail"}, nil
		}},
		{Name: "text", Run: func(context.Context, providers.ParseRequest) (*providers.ParsedPage, error) {
			return &providers.ParsedPage{Status: providers.PageStatusPartial}, nil
		}},
	}

	page, attempted, err := chain.Parse(context.Background(), providers.ParseRequest{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if page.Status != providers.PageStatusPartial {
		t.Errorf("Status = %s, want partial (partial counts as usable)", page.Status)
	}
	if len(attempted) != 2 {
		t.Errorf("attempted = %v", attempted)
	}
}

func TestChain_AllFail(t *testing.T) {
	chain := Chain{
		{Name: "only", Run: func(context.Context, providers.ParseRequest) (*providers.ParsedPage, error) {
			return nil, fmt.Errorf("boom")
		}},
	}

	_, attempted, err := chain.Parse(context.Background(), providers.ParseRequest{})
	if err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
	if len(attempted) != 1 {
		t.Errorf("attempted = %v", attempted)
	}
}
