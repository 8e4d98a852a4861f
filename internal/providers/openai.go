package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/bookRa/ragpipe/internal/guardrail"
)

const parsePrompt = `You are a document parsing assistant. Convert the page into JSON:
{"components":[{"type":"text|table|image","text":"...","metadata":{}}]}
Preserve reading order. Tables become pipe-delimited text. Describe images briefly.
Return only the JSON object.`

const cleanPrompt = `You are a text normalization assistant. Clean the following parsed page text:
remove OCR artifacts, fix hyphenation across line breaks, and drop repeated headers
and footers. Return the cleaned text as plain paragraphs separated by blank lines.`

// OpenAI implements the Parser, Cleaner, Summarizer, and Embedder ports
// against the OpenAI API. Parse responses stream through a guardrail that
// classifies runaway output instead of failing the pipeline.
type OpenAI struct {
	client    openai.Client
	model     string
	embedding string
	logger    *slog.Logger
	guardCfg  guardrail.Config
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey         string
	Model          string // default gpt-4o-mini
	EmbeddingModel string // default text-embedding-3-small
	Logger         *slog.Logger
	Guardrail      guardrail.Config
}

// NewOpenAI creates a new OpenAI provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider requires an API key")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	embedding := cfg.EmbeddingModel
	if embedding == "" {
		embedding = "text-embedding-3-small"
	}

	return &OpenAI{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		embedding: embedding,
		logger:    logger.With("provider", "openai", "model", model),
		guardCfg:  cfg.Guardrail,
	}, nil
}

// Parse implements Parser. The response streams through a fresh guardrail;
// a trip stops consumption and downgrades the page to partial or failed
// depending on whether components are still recoverable from the partial
// text.
func (o *OpenAI) Parse(ctx context.Context, req ParseRequest) (*ParsedPage, error) {
	userParts := []openai.ChatCompletionContentPartUnionParam{}

	if req.ArtifactPath != "" {
		dataURL, err := encodeImage(req.ArtifactPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load page artifact: %w", err)
		}
		userParts = append(userParts,
			openai.TextContentPart(fmt.Sprintf("Parse page %d of this document.", req.PageNumber)),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		)
	} else {
		userParts = append(userParts,
			openai.TextContentPart(fmt.Sprintf("Parse page %d. Raw text follows:\n\n%s", req.PageNumber, req.RawText)),
		)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(parsePrompt),
			openai.UserMessage(userParts),
		},
	}

	guard := guardrail.New(o.guardCfg)
	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if trip := guard.Feed(delta); trip != nil {
			// Stop consuming; classification happens below.
			o.logger.Warn("guardrail tripped mid-stream",
				"document_id", req.DocumentID,
				"page", req.PageNumber,
				"kind", trip.Kind,
			)
			break
		}
	}
	if err := stream.Err(); err != nil && guard.Tripped() == nil {
		return nil, fmt.Errorf("chat stream failed: %w", err)
	}

	return classifyParse(guard), nil
}

// classifyParse turns guardrail output into a ParsedPage. No trip means
// success when the payload decodes; a trip downgrades to partial when
// structured content is still recoverable, failed otherwise.
func classifyParse(guard *guardrail.Guardrail) *ParsedPage {
	text := guard.Text()
	trip := guard.Tripped()

	components, decodeErr := DecodeComponents(text)

	if trip == nil {
		if decodeErr != nil {
			// Fall back to the raw text as a single component rather than
			// discarding a readable response.
			if strings.TrimSpace(text) == "" {
				return &ParsedPage{
					Status:       PageStatusFailed,
					ErrorType:    "empty_response",
					ErrorDetails: "model returned no content",
				}
			}
			return &ParsedPage{
				Status:       PageStatusPartial,
				ErrorType:    "unstructured_response",
				ErrorDetails: decodeErr.Error(),
				Components:   []Component{{Type: "text", Text: text}},
			}
		}
		return &ParsedPage{Status: PageStatusSuccess, Components: components}
	}

	if decodeErr == nil && len(components) > 0 {
		return &ParsedPage{
			Status:       PageStatusPartial,
			ErrorType:    string(trip.Kind),
			ErrorDetails: trip.Detail,
			Components:   components,
		}
	}
	return &ParsedPage{
		Status:       PageStatusFailed,
		ErrorType:    string(trip.Kind),
		ErrorDetails: trip.Detail,
	}
}

// Clean implements Cleaner.
func (o *OpenAI) Clean(ctx context.Context, req CleanRequest) (*CleanedPage, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(cleanPrompt),
			openai.UserMessage(req.Parsed.Text()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clean call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("clean call returned no choices")
	}

	content := completion.Choices[0].Message.Content
	segments := []string{}
	for _, s := range strings.Split(content, "\n\n") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return &CleanedPage{Segments: segments}, nil
}

// Summarize implements Summarizer.
func (o *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("Summarize the following text in one or two sentences."),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("summarize call returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.embedding),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings call failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings call returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Interface compliance
var (
	_ Parser     = (*OpenAI)(nil)
	_ Cleaner    = (*OpenAI)(nil)
	_ Summarizer = (*OpenAI)(nil)
	_ Embedder   = (*OpenAI)(nil)
)
