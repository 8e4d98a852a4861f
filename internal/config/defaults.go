package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"openai": {
				Type:    "openai",
				Model:   "gpt-4o-mini",
				APIKey:  "${OPENAI_API_KEY}",
				RPM:     150,
				Enabled: true,
			},
		},
		Pipeline: PipelineConfig{
			MaxPageWorkers: 8,
			ParallelPages:  true,
			VisualParsing:  true,
			Retries:        3,
			RetryDelay:     time.Second,
		},
		Batch: BatchConfig{
			MaxConcurrentDocuments: 4,
			MaxFiles:               20,
			ErrorStrategy:          "continue",
		},
		Render: RenderConfig{
			Workers:        0, // NumCPU
			DPI:            300,
			MaxWidth:       1536,
			MaxHeight:      1536,
			TimeoutPerPage: 60 * time.Second,
		},
		Guardrail: GuardrailConfig{
			MaxChars:               50000,
			RepetitionWindow:       200,
			RepetitionThreshold:    0.8,
			NewlineWindow:          500,
			MaxConsecutiveNewlines: 100,
		},
	}
}
