// Package guardrail detects runaway model output in an incrementally
// growing text stream. The checks run after every delta in fixed priority
// order; once a check trips, further input is ignored.
//
// A trip is not an error: callers downgrade the page to partial or failed
// depending on whether structured content is still recoverable from the
// accumulated text. The guardrail only stops local consumption; it cannot
// cancel the underlying transport.
package guardrail

import (
	"fmt"
	"strings"
)

// Kind classifies why the guardrail tripped.
type Kind string

const (
	KindMaxLength        Kind = "max_length_exceeded"
	KindRepetitionLoop   Kind = "repetition_loop"
	KindNewlines         Kind = "excessive_newlines"
	KindEscapedNewlines  Kind = "excessive_escaped_newlines"
)

// Trip describes a detection: the kind and a human-readable detail.
type Trip struct {
	Kind   Kind
	Detail string
}

// Config holds the detection thresholds.
type Config struct {
	// MaxChars trips KindMaxLength when total length exceeds it.
	MaxChars int

	// RepetitionWindow is the tail window inspected for character loops.
	RepetitionWindow int

	// RepetitionThreshold is the fraction of the window a single character
	// must exceed to trip KindRepetitionLoop.
	RepetitionThreshold float64

	// NewlineWindow is the tail window inspected for newline floods.
	NewlineWindow int

	// MaxConsecutiveNewlines trips KindNewlines when the window contains a
	// run of at least this many literal newlines.
	MaxConsecutiveNewlines int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MaxChars:               50000,
		RepetitionWindow:       200,
		RepetitionThreshold:    0.8,
		NewlineWindow:          500,
		MaxConsecutiveNewlines: 100,
	}
}

// Guardrail accumulates stream deltas and evaluates the checks after each.
// Not safe for concurrent use; each model call owns its own instance.
type Guardrail struct {
	cfg  Config
	buf  strings.Builder
	trip *Trip
}

// New creates a guardrail. Zero-valued config fields use defaults.
func New(cfg Config) *Guardrail {
	def := DefaultConfig()
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.RepetitionWindow <= 0 {
		cfg.RepetitionWindow = def.RepetitionWindow
	}
	if cfg.RepetitionThreshold <= 0 {
		cfg.RepetitionThreshold = def.RepetitionThreshold
	}
	if cfg.NewlineWindow <= 0 {
		cfg.NewlineWindow = def.NewlineWindow
	}
	if cfg.MaxConsecutiveNewlines <= 0 {
		cfg.MaxConsecutiveNewlines = def.MaxConsecutiveNewlines
	}
	return &Guardrail{cfg: cfg}
}

// Feed consumes one delta and returns the trip, if any. After a trip the
// delta is discarded and the same trip is returned on every call.
func (g *Guardrail) Feed(delta string) *Trip {
	if g.trip != nil {
		return g.trip
	}

	g.buf.WriteString(delta)
	text := g.buf.String()

	// Checks run in fixed priority order.
	if trip := g.checkMaxLength(text); trip != nil {
		g.trip = trip
		return trip
	}
	if trip := g.checkRepetition(text); trip != nil {
		g.trip = trip
		return trip
	}
	if trip := g.checkNewlines(text); trip != nil {
		g.trip = trip
		return trip
	}
	if trip := g.checkEscapedNewlines(text); trip != nil {
		g.trip = trip
		return trip
	}
	return nil
}

// Tripped returns the recorded trip, or nil.
func (g *Guardrail) Tripped() *Trip {
	return g.trip
}

// Text returns the text accumulated up to the trip (or all of it).
func (g *Guardrail) Text() string {
	return g.buf.String()
}

func (g *Guardrail) checkMaxLength(text string) *Trip {
	if len(text) > g.cfg.MaxChars {
		return &Trip{
			Kind:   KindMaxLength,
			Detail: fmt.Sprintf("output length %d exceeds maximum %d characters", len(text), g.cfg.MaxChars),
		}
	}
	return nil
}

func (g *Guardrail) checkRepetition(text string) *Trip {
	w := g.cfg.RepetitionWindow
	runes := []rune(text)
	if len(runes) < w {
		return nil
	}
	window := runes[len(runes)-w:]

	counts := make(map[rune]int)
	var topChar rune
	top := 0
	for _, r := range window {
		counts[r]++
		if counts[r] > top {
			top = counts[r]
			topChar = r
		}
	}

	ratio := float64(top) / float64(w)
	if ratio > g.cfg.RepetitionThreshold {
		return &Trip{
			Kind:   KindRepetitionLoop,
			Detail: fmt.Sprintf("character %q occupies %.0f%% of the last %d characters", topChar, ratio*100, w),
		}
	}
	return nil
}

func (g *Guardrail) checkNewlines(text string) *Trip {
	window := tail(text, g.cfg.NewlineWindow)

	run, longest := 0, 0
	for i := 0; i < len(window); i++ {
		if window[i] == '\n' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}

	if longest >= g.cfg.MaxConsecutiveNewlines {
		return &Trip{
			Kind:   KindNewlines,
			Detail: fmt.Sprintf("run of %d consecutive newlines in the last %d characters", longest, g.cfg.NewlineWindow),
		}
	}
	return nil
}

func (g *Guardrail) checkEscapedNewlines(text string) *Trip {
	window := tail(text, g.cfg.NewlineWindow)

	// Trips when count scaled by 2 exceeds 50% of the window length.
	count := strings.Count(window, `\n`)
	if count*4 > len(window) {
		return &Trip{
			Kind:   KindEscapedNewlines,
			Detail: fmt.Sprintf("%d escaped newline sequences in the last %d characters", count, len(window)),
		}
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
