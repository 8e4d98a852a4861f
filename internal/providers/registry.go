package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bookRa/ragpipe/internal/guardrail"
	"github.com/bookRa/ragpipe/internal/ratelimit"
)

// ProviderConfig configures one provider entry in the registry.
type ProviderConfig struct {
	Type    string // "openai" or "mock"
	Model   string
	APIKey  string // already env-resolved by the caller
	RPM     int
	Burst   int
	Enabled bool
}

// RegistryConfig configures the registry.
type RegistryConfig struct {
	Providers map[string]ProviderConfig
	Guardrail guardrail.Config
	Logger    *slog.Logger
}

// Entry bundles one named provider's ports with its rate limiter.
type Entry struct {
	Name       string
	Parser     Parser
	Cleaner    Cleaner
	Summarizer Summarizer
	Embedder   Embedder
	Limiter    *ratelimit.Limiter
}

// Registry holds the configured providers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	logger  *slog.Logger
}

// NewRegistry builds providers from config. Disabled providers are skipped;
// an error building any enabled provider fails the whole registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		entries: make(map[string]*Entry),
		logger:  logger,
	}

	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}

		entry := &Entry{
			Name:    name,
			Limiter: ratelimit.New(pc.RPM, pc.Burst),
		}

		switch pc.Type {
		case "openai":
			p, err := NewOpenAI(OpenAIConfig{
				APIKey:    pc.APIKey,
				Model:     pc.Model,
				Logger:    logger,
				Guardrail: cfg.Guardrail,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to build provider %s: %w", name, err)
			}
			entry.Parser = p
			entry.Cleaner = p
			entry.Summarizer = p
			entry.Embedder = p

		case "mock":
			m := NewMock()
			entry.Parser = m
			entry.Cleaner = m
			entry.Summarizer = m
			entry.Embedder = m

		default:
			return nil, fmt.Errorf("unknown provider type %q for %s", pc.Type, name)
		}

		r.entries[name] = entry
		logger.Info("provider registered", "name", name, "type", pc.Type, "rpm", pc.RPM)
	}

	if len(r.entries) == 0 {
		return nil, fmt.Errorf("no enabled providers configured")
	}

	return r, nil
}

// Get returns a provider entry by name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Default returns the first enabled provider in name order.
func (r *Registry) Default() *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}
	return r.entries[names[0]]
}

// Names returns all registered provider names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
