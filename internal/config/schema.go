package config

import "time"

// Config is the full ragpipe configuration.
type Config struct {
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Pipeline  PipelineConfig            `mapstructure:"pipeline" yaml:"pipeline"`
	Batch     BatchConfig               `mapstructure:"batch" yaml:"batch"`
	Render    RenderConfig              `mapstructure:"render" yaml:"render"`
	Guardrail GuardrailConfig           `mapstructure:"guardrail" yaml:"guardrail"`
}

// ProviderConfig configures one model provider.
type ProviderConfig struct {
	Type    string `mapstructure:"type" yaml:"type"`       // "openai" or "mock"
	Model   string `mapstructure:"model" yaml:"model"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} references
	RPM     int    `mapstructure:"rpm" yaml:"rpm"`
	Burst   int    `mapstructure:"burst" yaml:"burst"`     // 0 = same as rpm
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// PipelineConfig controls per-document page processing.
type PipelineConfig struct {
	// MaxPageWorkers bounds concurrent model calls for one document's pages.
	MaxPageWorkers int `mapstructure:"max_page_workers" yaml:"max_page_workers"`

	// ParallelPages toggles the parallel page path. When false every page
	// is processed sequentially.
	ParallelPages bool `mapstructure:"parallel_pages" yaml:"parallel_pages"`

	// VisualParsing toggles page rendering before parse. When false the
	// parser receives raw text only.
	VisualParsing bool `mapstructure:"visual_parsing" yaml:"visual_parsing"`

	// Retries is the number of attempts for one model call at the edge.
	Retries int `mapstructure:"retries" yaml:"retries"`

	// RetryDelay is the base delay between attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// BatchConfig controls batch admission.
type BatchConfig struct {
	MaxConcurrentDocuments int    `mapstructure:"max_concurrent_documents" yaml:"max_concurrent_documents"`
	MaxFiles               int    `mapstructure:"max_files" yaml:"max_files"`
	ErrorStrategy          string `mapstructure:"error_strategy" yaml:"error_strategy"` // "continue" or "fail_all"
}

// RenderConfig controls the page renderer.
type RenderConfig struct {
	// Workers bounds concurrent render subprocesses. 0 = NumCPU.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// DPI is the render resolution when no downsampling bound is set.
	DPI int `mapstructure:"dpi" yaml:"dpi"`

	// MaxWidth/MaxHeight bound artifact dimensions, preserving aspect
	// ratio. 0 disables downsampling.
	MaxWidth  int `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight int `mapstructure:"max_height" yaml:"max_height"`

	// TimeoutPerPage scales the coarse render deadline: the whole
	// document's render budget is TimeoutPerPage x page count.
	TimeoutPerPage time.Duration `mapstructure:"timeout_per_page" yaml:"timeout_per_page"`
}

// GuardrailConfig holds stream guardrail thresholds.
type GuardrailConfig struct {
	MaxChars               int     `mapstructure:"max_chars" yaml:"max_chars"`
	RepetitionWindow       int     `mapstructure:"repetition_window" yaml:"repetition_window"`
	RepetitionThreshold    float64 `mapstructure:"repetition_threshold" yaml:"repetition_threshold"`
	NewlineWindow          int     `mapstructure:"newline_window" yaml:"newline_window"`
	MaxConsecutiveNewlines int     `mapstructure:"max_consecutive_newlines" yaml:"max_consecutive_newlines"`
}
