// Package render turns a source PDF into per-page image artifacts. Each
// page renders in its own OS process (the native raster library is not
// safe to share across threads), bounded by a worker semaphore.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/bookRa/ragpipe/internal/document"
)

// RenderFunc renders one page of a PDF to an output path. The default
// implementation shells out to pdftoppm; tests substitute their own.
type RenderFunc func(ctx context.Context, pdfPath, outPath string, page, dpi, scaleTo int) error

// Renderer renders document pages to PNG artifacts.
type Renderer struct {
	logger         *slog.Logger
	workers        int
	dpi            int
	maxWidth       int
	maxHeight      int
	timeoutPerPage time.Duration

	// pageCount and renderPage are swappable for tests.
	pageCount  func(pdfPath string) (int, error)
	renderPage RenderFunc
}

// Config configures a Renderer.
type Config struct {
	Logger *slog.Logger

	// Workers bounds concurrent render processes (default NumCPU).
	Workers int

	// DPI is the render resolution (default 300).
	DPI int

	// MaxWidth/MaxHeight bound artifact dimensions while preserving
	// aspect ratio. 0 disables downsampling.
	MaxWidth  int
	MaxHeight int

	// TimeoutPerPage scales the coarse deadline for the whole document:
	// budget = TimeoutPerPage x page count (default 60s).
	TimeoutPerPage time.Duration
}

// New creates a Renderer.
func New(cfg Config) *Renderer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = 300
	}
	timeout := cfg.TimeoutPerPage
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := &Renderer{
		logger:         logger.With("component", "renderer"),
		workers:        workers,
		dpi:            dpi,
		maxWidth:       cfg.MaxWidth,
		maxHeight:      cfg.MaxHeight,
		timeoutPerPage: timeout,
		pageCount:      pdfPageCount,
	}
	r.renderPage = renderWithPdftoppm
	return r
}

// RenderDocument renders every page of the PDF at pdfPath into outDir and
// returns artifact info keyed by page number. Per-page failures are logged
// and excluded from the result; the call errors only when the source can't
// be opened or every page fails. The whole fan-out runs under one coarse
// deadline of TimeoutPerPage x page count.
func (r *Renderer) RenderDocument(ctx context.Context, pdfPath, docID, outDir string) (map[int]document.PixmapInfo, error) {
	pageCount, err := r.pageCount(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("document has no pages: %s", pdfPath)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	budget := r.timeoutPerPage * time.Duration(pageCount)
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	r.logger.Debug("rendering document",
		"document_id", docID, "pages", pageCount, "budget", budget)

	// scaleTo bounds the longer edge, which keeps both dimensions within
	// the configured maximums while preserving aspect ratio.
	scaleTo := r.scaleTo()

	type result struct {
		pageNum int
		info    document.PixmapInfo
		err     error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, r.workers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(pageNum int) {
			defer func() { <-sem }() // release

			outPath := filepath.Join(outDir, fmt.Sprintf("page_%04d.png", pageNum))
			err := r.renderPage(ctx, pdfPath, outPath, pageNum, r.dpi, scaleTo)
			if err != nil {
				results <- result{pageNum: pageNum, err: err}
				return
			}

			info, statErr := os.Stat(outPath)
			if statErr != nil {
				results <- result{pageNum: pageNum, err: fmt.Errorf("artifact missing after render: %w", statErr)}
				return
			}

			results <- result{pageNum: pageNum, info: document.PixmapInfo{
				PageNumber: pageNum,
				Path:       outPath,
				SizeBytes:  info.Size(),
			}}
		}(page)
	}

	// Collect; failed pages are excluded, not fatal.
	pixmaps := make(map[int]document.PixmapInfo, pageCount)
	failed := 0
	for i := 0; i < pageCount; i++ {
		res := <-results
		if res.err != nil {
			failed++
			r.logger.Warn("page render failed",
				"document_id", docID, "page", res.pageNum, "error", res.err)
			continue
		}
		pixmaps[res.pageNum] = res.info
	}

	if failed == pageCount {
		return nil, fmt.Errorf("all %d pages failed to render for document %s", pageCount, docID)
	}
	if failed > 0 {
		r.logger.Warn("document rendered with failures",
			"document_id", docID, "rendered", len(pixmaps), "failed", failed)
	}

	return pixmaps, nil
}

// scaleTo returns the pixel bound for the longer page edge, or 0 when
// downsampling is disabled.
func (r *Renderer) scaleTo() int {
	if r.maxWidth <= 0 && r.maxHeight <= 0 {
		return 0
	}
	if r.maxWidth > 0 && (r.maxHeight <= 0 || r.maxWidth < r.maxHeight) {
		return r.maxWidth
	}
	return r.maxHeight
}

// pdfPageCount opens the source once to determine the page count.
func pdfPageCount(pdfPath string) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()
	return api.PageCount(f, nil)
}

// renderWithPdftoppm renders a single page using pdftoppm (poppler-utils).
// Each call opens its own handle on the source, so concurrent renders never
// share native state.
func renderWithPdftoppm(ctx context.Context, pdfPath, outPath string, page, dpi, scaleTo int) error {
	tmpDir, err := os.MkdirTemp("", "ragpipe-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := fmt.Sprintf("%d", page)

	args := []string{
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-singlefile",
	}
	if scaleTo > 0 {
		args = append(args, "-scale-to", fmt.Sprintf("%d", scaleTo))
	} else {
		args = append(args, "-r", fmt.Sprintf("%d", dpi))
	}
	args = append(args, pdfPath, outputPrefix)

	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write page artifact: %w", err)
	}
	return nil
}
