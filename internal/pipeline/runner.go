package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookRa/ragpipe/internal/document"
	"github.com/bookRa/ragpipe/internal/pages"
	"github.com/bookRa/ragpipe/internal/providers"
	"github.com/bookRa/ragpipe/internal/ratelimit"
)

// embedBatchSize bounds how many chunk texts go into one embedding call.
const embedBatchSize = 64

// Runner executes the stages for one document. Stage errors abort the run
// and propagate to the caller; the records returned alongside the error
// cover the stages that completed.
type Runner struct {
	logger     *slog.Logger
	ingestor   providers.Ingestor
	processor  *pages.Processor
	chunker    providers.Chunker
	summarizer providers.Summarizer
	embedder   providers.Embedder
	limiter    *ratelimit.Limiter
}

// RunnerConfig configures a Runner. Ingestor, Processor, and Chunker are
// required; Summarizer and Embedder are optional and their stages become
// no-ops when absent.
type RunnerConfig struct {
	Logger     *slog.Logger
	Ingestor   providers.Ingestor
	Processor  *pages.Processor
	Chunker    providers.Chunker
	Summarizer providers.Summarizer
	Embedder   providers.Embedder
	Limiter    *ratelimit.Limiter
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Ingestor == nil {
		return nil, fmt.Errorf("runner requires an ingestor")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("runner requires a page processor")
	}
	if cfg.Chunker == nil {
		return nil, fmt.Errorf("runner requires a chunker")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:     logger.With("component", "pipeline"),
		ingestor:   cfg.Ingestor,
		processor:  cfg.Processor,
		chunker:    cfg.Chunker,
		summarizer: cfg.Summarizer,
		embedder:   cfg.Embedder,
		limiter:    cfg.Limiter,
	}, nil
}

// Run processes the document through every stage in order and returns the
// final snapshot plus one record per completed stage. On a stage error the
// records for the stages that did complete are still returned. progress may
// be nil; when set it is called after each stage, before the next starts.
func (r *Runner) Run(ctx context.Context, doc *document.Document, progress ProgressFunc) (*document.Document, []StageRecord, error) {
	records := make([]StageRecord, 0, len(StageOrder))
	current := doc

	for _, name := range StageOrder {
		if err := ctx.Err(); err != nil {
			return nil, records, err
		}

		started := time.Now()
		next, details, err := r.runStage(ctx, name, current)
		if err != nil {
			r.logger.Error("stage failed", "document_id", doc.ID, "stage", name, "error", err)
			return nil, records, fmt.Errorf("stage %s: %w", name, err)
		}
		current = next

		record := newStageRecord(name, details, started)
		records = append(records, record)
		r.logger.Info("stage completed",
			"document_id", doc.ID, "stage", name, "duration", record.Duration)
		if progress != nil {
			progress(record, current)
		}
	}

	return current, records, nil
}

func (r *Runner) runStage(ctx context.Context, name string, doc *document.Document) (*document.Document, map[string]any, error) {
	switch name {
	case StageIngest:
		return r.ingest(ctx, doc)
	case StageParse:
		return r.parse(ctx, doc)
	case StageClean:
		return r.clean(ctx, doc)
	case StageChunk:
		return r.chunk(ctx, doc)
	case StageEnrich:
		return r.enrich(ctx, doc)
	case StageVectorize:
		return r.vectorize(ctx, doc)
	default:
		return nil, nil, fmt.Errorf("unknown stage %q", name)
	}
}

func (r *Runner) ingest(ctx context.Context, doc *document.Document) (*document.Document, map[string]any, error) {
	out, err := r.ingestor.Ingest(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	out.Status = document.StatusIngested
	return out, map[string]any{
		"pages":      len(out.Pages),
		"size_bytes": out.SizeBytes,
		"type":       out.Type,
	}, nil
}

func (r *Runner) parse(ctx context.Context, doc *document.Document) (*document.Document, map[string]any, error) {
	out, err := r.processor.ParsePages(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	failed := 0
	for i := range out.Pages {
		if _, ok := out.Pages[i].Metadata["parse_error"]; ok {
			failed++
		}
	}
	return out, map[string]any{
		"pages":        len(out.Pages),
		"failed_pages": failed,
	}, nil
}

func (r *Runner) clean(ctx context.Context, doc *document.Document) (*document.Document, map[string]any, error) {
	out, err := r.processor.CleanPages(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return out, map[string]any{"pages": len(out.Pages)}, nil
}

func (r *Runner) chunk(ctx context.Context, doc *document.Document) (*document.Document, map[string]any, error) {
	out, err := r.chunker.Chunk(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	out.Status = document.StatusChunked
	return out, map[string]any{"chunks": out.ChunkCount()}, nil
}

// enrich summarizes each chunk. A missing summarizer makes this a no-op so
// the mock and text-only configurations still complete the full stage list.
func (r *Runner) enrich(ctx context.Context, doc *document.Document) (*document.Document, map[string]any, error) {
	out := doc.Clone()
	out.Status = document.StatusEnriched
	if r.summarizer == nil {
		return out, map[string]any{"chunks": 0, "skipped": true}, nil
	}

	summarized := 0
	for i := range out.Pages {
		for j := range out.Pages[i].Chunks {
			chunk := &out.Pages[i].Chunks[j]
			if chunk.Text == "" {
				continue
			}
			if err := r.acquire(ctx); err != nil {
				return nil, nil, err
			}
			summary, err := r.summarizer.Summarize(ctx, chunk.Text)
			if err != nil {
				return nil, nil, fmt.Errorf("chunk %s: %w", chunk.ID, err)
			}
			chunk.Summary = summary
			summarized++
		}
	}
	return out, map[string]any{"chunks": summarized}, nil
}

// vectorize embeds chunk texts in batches. A missing embedder makes this a
// no-op.
func (r *Runner) vectorize(ctx context.Context, doc *document.Document) (*document.Document, map[string]any, error) {
	out := doc.Clone()
	out.Status = document.StatusVectorized
	if r.embedder == nil {
		return out, map[string]any{"chunks": 0, "skipped": true}, nil
	}

	var chunks []*document.Chunk
	for i := range out.Pages {
		for j := range out.Pages[i].Chunks {
			if out.Pages[i].Chunks[j].Text != "" {
				chunks = append(chunks, &out.Pages[i].Chunks[j])
			}
		}
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		if err := r.acquire(ctx); err != nil {
			return nil, nil, err
		}
		vectors, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, nil, err
		}
		if len(vectors) != len(batch) {
			return nil, nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}
		for i, c := range batch {
			c.Embedding = vectors[i]
		}
	}

	return out, map[string]any{"chunks": len(chunks)}, nil
}

func (r *Runner) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Acquire(ctx, 1)
}
