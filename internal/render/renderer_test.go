package render

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// fakeRenderer returns a Renderer whose page count and render func are
// stubbed so tests don't need poppler or a real PDF.
func fakeRenderer(t *testing.T, pages int, failPages map[int]bool) *Renderer {
	t.Helper()

	r := New(Config{Workers: 4, TimeoutPerPage: 5 * time.Second})
	r.pageCount = func(string) (int, error) { return pages, nil }
	r.renderPage = func(_ context.Context, _, outPath string, page, _, _ int) error {
		if failPages[page] {
			return fmt.Errorf("simulated render failure for page %d", page)
		}
		return os.WriteFile(outPath, []byte(fmt.Sprintf("png-bytes-%d", page)), 0o644)
	}
	return r
}

func TestRenderDocument_AllPages(t *testing.T) {
	r := fakeRenderer(t, 5, nil)

	pixmaps, err := r.RenderDocument(context.Background(), "in.pdf", "doc1", t.TempDir())
	if err != nil {
		t.Fatalf("RenderDocument() error = %v", err)
	}

	if len(pixmaps) != 5 {
		t.Fatalf("len(pixmaps) = %d, want 5", len(pixmaps))
	}
	for page := 1; page <= 5; page++ {
		info, ok := pixmaps[page]
		if !ok {
			t.Errorf("page %d missing from result", page)
			continue
		}
		if info.PageNumber != page {
			t.Errorf("PageNumber = %d, want %d", info.PageNumber, page)
		}
		if info.SizeBytes == 0 {
			t.Errorf("page %d SizeBytes = 0", page)
		}
		if _, err := os.Stat(info.Path); err != nil {
			t.Errorf("artifact %s not on disk: %v", info.Path, err)
		}
	}
}

func TestRenderDocument_PartialFailureIsolated(t *testing.T) {
	r := fakeRenderer(t, 4, map[int]bool{2: true})

	pixmaps, err := r.RenderDocument(context.Background(), "in.pdf", "doc1", t.TempDir())
	if err != nil {
		t.Fatalf("RenderDocument() error = %v, want nil (partial failure is not fatal)", err)
	}

	if len(pixmaps) != 3 {
		t.Errorf("len(pixmaps) = %d, want 3", len(pixmaps))
	}
	if _, ok := pixmaps[2]; ok {
		t.Error("failed page 2 present in result map")
	}
}

func TestRenderDocument_AllPagesFailed(t *testing.T) {
	r := fakeRenderer(t, 3, map[int]bool{1: true, 2: true, 3: true})

	if _, err := r.RenderDocument(context.Background(), "in.pdf", "doc1", t.TempDir()); err == nil {
		t.Fatal("RenderDocument() error = nil, want error when every page fails")
	}
}

func TestRenderDocument_ZeroPages(t *testing.T) {
	r := New(Config{})
	r.pageCount = func(string) (int, error) { return 0, nil }

	if _, err := r.RenderDocument(context.Background(), "in.pdf", "doc1", t.TempDir()); err == nil {
		t.Fatal("RenderDocument() error = nil, want error for zero pages")
	}
}

func TestRenderDocument_CoarseTimeout(t *testing.T) {
	r := New(Config{Workers: 2, TimeoutPerPage: 20 * time.Millisecond})
	r.pageCount = func(string) (int, error) { return 2, nil }
	r.renderPage = func(ctx context.Context, _, _ string, page, _, _ int) error {
		// One hung page consumes the shared budget
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}

	start := time.Now()
	_, err := r.RenderDocument(context.Background(), "in.pdf", "doc1", t.TempDir())
	if err == nil {
		t.Fatal("RenderDocument() error = nil, want deadline failure")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("render ran %v, want cancellation near the 40ms budget", elapsed)
	}
}

func TestScaleTo(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		want     int
	}{
		{"disabled", 0, 0, 0},
		{"width only", 800, 0, 800},
		{"height only", 0, 600, 600},
		{"smaller wins", 1536, 1024, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Config{MaxWidth: tt.w, MaxHeight: tt.h})
			if got := r.scaleTo(); got != tt.want {
				t.Errorf("scaleTo() = %d, want %d", got, tt.want)
			}
		})
	}
}
