// Package pages fans the pages of one document out across a bounded set of
// concurrent model calls. Per-page failures are isolated: a failed page
// keeps its prior content and never aborts its siblings.
package pages

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/semaphore"

	"github.com/bookRa/ragpipe/internal/document"
	"github.com/bookRa/ragpipe/internal/providers"
	"github.com/bookRa/ragpipe/internal/ratelimit"
	"github.com/bookRa/ragpipe/internal/render"
)

// Processor runs parse and clean over a document's pages. Concurrency is
// bounded twice: a semaphore for local resources and a rate limiter for
// the external API.
type Processor struct {
	logger      *slog.Logger
	parser      providers.Parser
	cleaner     providers.Cleaner
	limiter     *ratelimit.Limiter
	renderer    *render.Renderer
	artifactDir func(docID string) string

	maxWorkers int64
	parallel   bool
	visual     bool
	retries    uint
	retryDelay time.Duration
	strategies Chain
}

// Config configures a Processor.
type Config struct {
	Logger  *slog.Logger
	Parser  providers.Parser
	Cleaner providers.Cleaner
	Limiter *ratelimit.Limiter

	// Renderer produces page artifacts before visual parsing. Optional;
	// nil disables rendering regardless of Visual.
	Renderer *render.Renderer

	// ArtifactDir resolves the artifact directory for a document.
	ArtifactDir func(docID string) string

	// MaxWorkers bounds concurrent page tasks (default 8).
	MaxWorkers int

	// Parallel toggles the concurrent path. When false pages process
	// sequentially.
	Parallel bool

	// Visual toggles rendering page images for the parser.
	Visual bool

	// Retries is the attempt count for one model call (default 3).
	Retries uint

	// RetryDelay is the base delay between attempts (default 1s).
	RetryDelay time.Duration

	// Strategies overrides the default visual-then-text parse chain.
	Strategies Chain
}

// NewProcessor creates a Processor.
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Parser == nil {
		return nil, fmt.Errorf("processor requires a parser")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("processor requires a rate limiter")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	artifactDir := cfg.ArtifactDir
	if artifactDir == nil {
		artifactDir = func(string) string { return "" }
	}

	return &Processor{
		logger:      logger.With("component", "pages"),
		parser:      cfg.Parser,
		cleaner:     cfg.Cleaner,
		limiter:     cfg.Limiter,
		renderer:    cfg.Renderer,
		artifactDir: artifactDir,
		maxWorkers:  int64(maxWorkers),
		parallel:    cfg.Parallel,
		visual:      cfg.Visual,
		retries:     retries,
		retryDelay:  retryDelay,
		strategies:  cfg.Strategies,
	}, nil
}

// ParsePages parses every page of the document concurrently and returns a
// new snapshot; the input document is never mutated. A page whose parse
// fails keeps its prior content. Returns an error only when the context is
// cancelled.
func (p *Processor) ParsePages(ctx context.Context, doc *document.Document) (*document.Document, error) {
	if !p.parallel || len(doc.Pages) == 0 {
		return p.parseSequential(ctx, doc)
	}

	out := doc.Clone()
	pixmaps := p.renderArtifacts(ctx, out)

	sem := semaphore.NewWeighted(p.maxWorkers)
	var wg sync.WaitGroup

	for i := range out.Pages {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(page *document.Page) {
			defer wg.Done()
			defer sem.Release(1)
			p.parsePage(ctx, doc.ID, page, pixmaps)
		}(&out.Pages[i])
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.Status = document.StatusParsed
	return out, nil
}

// parsePage parses one page in place. Each goroutine owns exactly one page
// of the snapshot, so no further synchronization is needed. Failures are
// logged and leave the page's prior content intact.
func (p *Processor) parsePage(ctx context.Context, docID string, page *document.Page, pixmaps map[int]document.PixmapInfo) {
	if err := p.limiter.Acquire(ctx, 1); err != nil {
		p.recordPageError(page, "parse_error", err)
		return
	}

	req := providers.ParseRequest{
		DocumentID: docID,
		PageNumber: page.Number,
		RawText:    page.RawText,
	}
	if info, ok := pixmaps[page.Number]; ok {
		req.ArtifactPath = info.Path
	}

	chain := p.strategiesFor(req.ArtifactPath)

	var parsed *providers.ParsedPage
	var attempted []string
	err := retry.Do(
		func() error {
			var parseErr error
			parsed, attempted, parseErr = chain.Parse(ctx, req)
			return parseErr
		},
		retry.Context(ctx),
		retry.Attempts(p.retries),
		retry.Delay(p.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		p.logger.Warn("page parse failed, keeping prior content",
			"document_id", docID, "page", page.Number, "strategies", attempted, "error", err)
		p.recordPageError(page, "parse_error", err)
		if len(attempted) > 0 {
			setMeta(page, "parse_strategies", attempted)
		}
		return
	}

	page.RawText = parsed.Text()
	setMeta(page, "parse_status", string(parsed.Status))
	setMeta(page, "parse_strategies", attempted)
	setMeta(page, "components", parsed.Components)
	if parsed.Status == providers.PageStatusPartial {
		setMeta(page, "parse_error", parsed.ErrorType)
		setMeta(page, "parse_error_details", parsed.ErrorDetails)
	}
	if req.ArtifactPath != "" {
		setMeta(page, "artifact_path", req.ArtifactPath)
	}
}

// parseSequential is the fallback path when parallelism is disabled or the
// document has no pages yet. A page-less document is parsed as one unit and
// the result becomes page 1.
func (p *Processor) parseSequential(ctx context.Context, doc *document.Document) (*document.Document, error) {
	out := doc.Clone()

	if len(out.Pages) == 0 {
		raw, _ := out.Metadata["raw_text"].(string)
		parsed, attempted, err := p.strategiesFor("").Parse(ctx, providers.ParseRequest{
			DocumentID: doc.ID,
			PageNumber: 1,
			RawText:    raw,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.logger.Warn("document parse failed", "document_id", doc.ID, "error", err)
			return out, nil
		}
		page := document.Page{Number: 1, RawText: parsed.Text()}
		setMeta(&page, "parse_status", string(parsed.Status))
		setMeta(&page, "parse_strategies", attempted)
		_ = out.AddPage(page)
		out.Status = document.StatusParsed
		return out, nil
	}

	pixmaps := p.renderArtifacts(ctx, out)
	for i := range out.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.parsePage(ctx, doc.ID, &out.Pages[i], pixmaps)
	}
	out.Status = document.StatusParsed
	return out, nil
}

// renderArtifacts renders page images for visual parsing. A render failure
// degrades to text-only parsing rather than failing the document; the
// degradation is recorded on the document's metadata so run records show
// that visual parsing never happened.
func (p *Processor) renderArtifacts(ctx context.Context, doc *document.Document) map[int]document.PixmapInfo {
	if !p.visual || p.renderer == nil || doc.SourcePath == "" || !strings.EqualFold(doc.Type, "pdf") {
		return nil
	}

	pixmaps, err := p.renderer.RenderDocument(ctx, doc.SourcePath, doc.ID, p.artifactDir(doc.ID))
	if err != nil {
		p.logger.Warn("page rendering failed, parsing from text only",
			"document_id", doc.ID, "error", err)
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		doc.Metadata["render_degraded"] = true
		doc.Metadata["render_error"] = err.Error()
		return nil
	}
	return pixmaps
}

// CleanPages normalizes and cleans every page concurrently, returning a new
// snapshot. Per-page isolation matches ParsePages: a failed clean keeps the
// page's normalized text.
func (p *Processor) CleanPages(ctx context.Context, doc *document.Document) (*document.Document, error) {
	out := doc.Clone()

	if !p.parallel || len(out.Pages) == 0 {
		for i := range out.Pages {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p.cleanPage(ctx, doc.ID, &out.Pages[i])
		}
		out.Status = document.StatusCleaned
		return out, nil
	}

	sem := semaphore.NewWeighted(p.maxWorkers)
	var wg sync.WaitGroup

	for i := range out.Pages {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(page *document.Page) {
			defer wg.Done()
			defer sem.Release(1)
			p.cleanPage(ctx, doc.ID, page)
		}(&out.Pages[i])
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.Status = document.StatusCleaned
	return out, nil
}

// cleanPage normalizes one page's text and, when a cleaner is configured,
// applies it keyed by the page's parse metadata.
func (p *Processor) cleanPage(ctx context.Context, docID string, page *document.Page) {
	normalized := normalizeText(page.RawText)
	page.CleanedText = normalized

	if p.cleaner == nil || normalized == "" {
		return
	}

	if err := p.limiter.Acquire(ctx, 1); err != nil {
		p.recordPageError(page, "clean_error", err)
		return
	}

	parsed := parsedFromPage(page)
	artifactPath, _ := page.Metadata["artifact_path"].(string)

	var cleaned *providers.CleanedPage
	err := retry.Do(
		func() error {
			var cleanErr error
			cleaned, cleanErr = p.cleaner.Clean(ctx, providers.CleanRequest{
				Parsed:       parsed,
				ArtifactPath: artifactPath,
				Metadata:     page.Metadata,
			})
			return cleanErr
		},
		retry.Context(ctx),
		retry.Attempts(p.retries),
		retry.Delay(p.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		p.logger.Warn("page clean failed, keeping normalized text",
			"document_id", docID, "page", page.Number, "error", err)
		p.recordPageError(page, "clean_error", err)
		return
	}

	if text := cleaned.Text(); text != "" {
		page.CleanedText = text
	}
}

// parsedFromPage reconstructs the parser's structured output stored on the
// page so the cleaner can key off it.
func parsedFromPage(page *document.Page) *providers.ParsedPage {
	parsed := &providers.ParsedPage{Status: providers.PageStatusSuccess}
	if status, ok := page.Metadata["parse_status"].(string); ok {
		parsed.Status = providers.PageStatus(status)
	}
	if comps, ok := page.Metadata["components"].([]providers.Component); ok {
		parsed.Components = comps
	} else {
		parsed.Components = []providers.Component{{Type: "text", Text: page.RawText}}
	}
	return parsed
}

var (
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	extraNewlines = regexp.MustCompile(`\n{3,}`)
)

// normalizeText strips control characters, normalizes line endings, and
// collapses runs of blank lines.
func normalizeText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = controlChars.ReplaceAllString(text, "")
	text = extraNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func (p *Processor) recordPageError(page *document.Page, key string, err error) {
	setMeta(page, key, err.Error())
}

func setMeta(page *document.Page, key string, value any) {
	if page.Metadata == nil {
		page.Metadata = map[string]any{}
	}
	page.Metadata[key] = value
}
