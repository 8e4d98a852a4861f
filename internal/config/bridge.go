package config

import (
	"log/slog"

	"github.com/bookRa/ragpipe/internal/guardrail"
	"github.com/bookRa/ragpipe/internal/providers"
)

// ToRegistryConfig converts the loaded configuration into the provider
// registry's input. API key references like ${OPENAI_API_KEY} are resolved
// against the environment here, at the last moment before use.
func (c *Config) ToRegistryConfig(logger *slog.Logger) providers.RegistryConfig {
	out := providers.RegistryConfig{
		Providers: make(map[string]providers.ProviderConfig, len(c.Providers)),
		Guardrail: c.ToGuardrailConfig(),
		Logger:    logger,
	}
	for name, pc := range c.Providers {
		out.Providers[name] = providers.ProviderConfig{
			Type:    pc.Type,
			Model:   pc.Model,
			APIKey:  ResolveEnvVars(pc.APIKey),
			RPM:     pc.RPM,
			Burst:   pc.Burst,
			Enabled: pc.Enabled,
		}
	}
	return out
}

// ToGuardrailConfig converts guardrail thresholds, falling back to defaults
// for unset fields.
func (c *Config) ToGuardrailConfig() guardrail.Config {
	out := guardrail.DefaultConfig()
	if c.Guardrail.MaxChars > 0 {
		out.MaxChars = c.Guardrail.MaxChars
	}
	if c.Guardrail.RepetitionWindow > 0 {
		out.RepetitionWindow = c.Guardrail.RepetitionWindow
	}
	if c.Guardrail.RepetitionThreshold > 0 {
		out.RepetitionThreshold = c.Guardrail.RepetitionThreshold
	}
	if c.Guardrail.NewlineWindow > 0 {
		out.NewlineWindow = c.Guardrail.NewlineWindow
	}
	if c.Guardrail.MaxConsecutiveNewlines > 0 {
		out.MaxConsecutiveNewlines = c.Guardrail.MaxConsecutiveNewlines
	}
	return out
}
