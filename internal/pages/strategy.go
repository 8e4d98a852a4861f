package pages

import (
	"context"
	"fmt"

	"github.com/bookRa/ragpipe/internal/providers"
)

// Strategy is one named way to parse a page. Strategies run in order;
// the first one returning a non-failed page wins.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, req providers.ParseRequest) (*providers.ParsedPage, error)
}

// Chain is an ordered list of parse strategies.
type Chain []Strategy

// Parse runs the chain. It returns the winning page, the names of every
// strategy attempted (for diagnostics), and an error when no strategy
// produced usable content.
func (c Chain) Parse(ctx context.Context, req providers.ParseRequest) (*providers.ParsedPage, []string, error) {
	if len(c) == 0 {
		return nil, nil, fmt.Errorf("no parse strategies configured")
	}

	attempted := make([]string, 0, len(c))
	var lastErr error

	for _, s := range c {
		attempted = append(attempted, s.Name)

		page, err := s.Run(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("strategy %s: %w", s.Name, err)
			continue
		}
		if page.Status == providers.PageStatusFailed {
			lastErr = fmt.Errorf("strategy %s: %s: %s", s.Name, page.ErrorType, page.ErrorDetails)
			continue
		}
		return page, attempted, nil
	}

	return nil, attempted, fmt.Errorf("all parse strategies failed: %w", lastErr)
}

// strategiesFor builds the default chain for one page: visual parse when a
// rendered artifact exists, then text-only as fallback.
func (p *Processor) strategiesFor(artifactPath string) Chain {
	if len(p.strategies) > 0 {
		return p.strategies
	}

	chain := Chain{}
	if artifactPath != "" {
		chain = append(chain, Strategy{
			Name: "visual",
			Run: func(ctx context.Context, req providers.ParseRequest) (*providers.ParsedPage, error) {
				return p.parser.Parse(ctx, req)
			},
		})
	}
	chain = append(chain, Strategy{
		Name: "text",
		Run: func(ctx context.Context, req providers.ParseRequest) (*providers.ParsedPage, error) {
			req.ArtifactPath = ""
			return p.parser.Parse(ctx, req)
		},
	})
	return chain
}
