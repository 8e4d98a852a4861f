package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Batch.MaxConcurrentDocuments != 4 {
		t.Errorf("MaxConcurrentDocuments = %d, want 4", cfg.Batch.MaxConcurrentDocuments)
	}
	if cfg.Batch.ErrorStrategy != "continue" {
		t.Errorf("ErrorStrategy = %s, want continue", cfg.Batch.ErrorStrategy)
	}
	if cfg.Guardrail.MaxChars != 50000 {
		t.Errorf("Guardrail.MaxChars = %d, want 50000", cfg.Guardrail.MaxChars)
	}
	if cfg.Render.TimeoutPerPage != 60*time.Second {
		t.Errorf("TimeoutPerPage = %v, want 60s", cfg.Render.TimeoutPerPage)
	}
	if _, ok := cfg.Providers["openai"]; !ok {
		t.Error("default providers missing openai")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("RAGPIPE_TEST_KEY", "secret123")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"env reference", "${RAGPIPE_TEST_KEY}", "secret123"},
		{"plain string", "not-a-ref", "not-a-ref"},
		{"empty", "", ""},
		{"missing var", "${RAGPIPE_DOES_NOT_EXIST}", ""},
		{"embedded", "key=${RAGPIPE_TEST_KEY}!", "key=secret123!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEnvVars(tt.input); got != tt.want {
				t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
