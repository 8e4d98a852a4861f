package guardrail

import (
	"strings"
	"testing"
)

func TestGuardrail_MaxLengthBoundary(t *testing.T) {
	tests := []struct {
		name   string
		length int
		trip   bool
	}{
		{"at limit", 50000, false},
		{"one over", 50001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Config{})
			// Mix characters so the repetition check stays quiet
			chunk := strings.Repeat("abcdefgh ", 1000)
			var trip *Trip
			fed := 0
			for fed < tt.length {
				n := len(chunk)
				if fed+n > tt.length {
					n = tt.length - fed
				}
				trip = g.Feed(chunk[:n])
				fed += n
			}

			if tt.trip {
				if trip == nil || trip.Kind != KindMaxLength {
					t.Fatalf("trip = %+v, want %s", trip, KindMaxLength)
				}
			} else if trip != nil {
				t.Fatalf("trip = %+v, want none", trip)
			}
		})
	}
}

func TestGuardrail_RepetitionLoop(t *testing.T) {
	tests := []struct {
		name    string
		repeats int // how many of the 200-char window are 'x'
		trip    bool
	}{
		{"85 percent", 170, true},
		{"79 percent", 158, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Config{})

			// Fill the rest of the window with distinct-ish characters so
			// no other byte dominates.
			filler := "abcdefghijklmnopqrstuvwxyz0123456789"
			var b strings.Builder
			for b.Len() < 200-tt.repeats {
				b.WriteByte(filler[b.Len()%len(filler)])
			}
			b.WriteString(strings.Repeat("x", tt.repeats))

			trip := g.Feed(b.String())
			if tt.trip {
				if trip == nil || trip.Kind != KindRepetitionLoop {
					t.Fatalf("trip = %+v, want %s", trip, KindRepetitionLoop)
				}
			} else if trip != nil {
				t.Fatalf("trip = %+v, want none", trip)
			}
		})
	}
}

func TestGuardrail_RepetitionMultiByte(t *testing.T) {
	// Repetition counts characters, not bytes. 300 copies of a 3-byte CJK
	// character are 100% one character over the window and must trip.
	g := New(Config{})
	trip := g.Feed(strings.Repeat("世", 300))
	if trip == nil || trip.Kind != KindRepetitionLoop {
		t.Fatalf("trip = %+v, want %s", trip, KindRepetitionLoop)
	}
}

func TestGuardrail_RepetitionNeedsFullWindow(t *testing.T) {
	g := New(Config{})
	if trip := g.Feed(strings.Repeat("x", 199)); trip != nil {
		t.Fatalf("trip = %+v on buffer shorter than window, want none", trip)
	}
}

func TestGuardrail_ConsecutiveNewlines(t *testing.T) {
	tests := []struct {
		name string
		runs int
		trip bool
	}{
		{"at limit", 100, true},
		{"one under", 99, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Config{})
			text := "some prefix text " + strings.Repeat("\n", tt.runs) + " trailing"
			trip := g.Feed(text)

			if tt.trip {
				if trip == nil || trip.Kind != KindNewlines {
					t.Fatalf("trip = %+v, want %s", trip, KindNewlines)
				}
			} else if trip != nil {
				t.Fatalf("trip = %+v, want none", trip)
			}
		})
	}
}

func TestGuardrail_EscapedNewlines(t *testing.T) {
	// 200-char window with 80 escaped-newline sequences (160 chars):
	// 80*2 = 160 > 100 = 50% of 200, so it trips.
	g := New(Config{})
	text := strings.Repeat(`\n`, 80) + strings.Repeat("a", 40)
	trip := g.Feed(text)
	if trip == nil || trip.Kind != KindEscapedNewlines {
		t.Fatalf("trip = %+v, want %s", trip, KindEscapedNewlines)
	}
}

func TestGuardrail_EscapedNewlinesUnderThreshold(t *testing.T) {
	g := New(Config{})
	// 20 sequences in a 400-char window: 20*2 = 40 <= 200
	text := strings.Repeat(`\n`, 20) + strings.Repeat("word san ", 40)
	if trip := g.Feed(text); trip != nil {
		t.Fatalf("trip = %+v, want none", trip)
	}
}

func TestGuardrail_SingleTrip(t *testing.T) {
	g := New(Config{MaxChars: 10})

	first := g.Feed("this is more than ten characters")
	if first == nil || first.Kind != KindMaxLength {
		t.Fatalf("first trip = %+v, want %s", first, KindMaxLength)
	}

	textAtTrip := g.Text()

	// Subsequent deltas are discarded and report the same trip.
	second := g.Feed("more data")
	if second != first {
		t.Errorf("second Feed returned %+v, want the original trip", second)
	}
	if g.Text() != textAtTrip {
		t.Error("buffer grew after trip")
	}
}

func TestGuardrail_CleanStream(t *testing.T) {
	g := New(Config{})
	deltas := []string{"The quick brown fox ", "jumps over ", "the lazy dog.\n", "Page two follows."}
	for _, d := range deltas {
		if trip := g.Feed(d); trip != nil {
			t.Fatalf("trip = %+v on clean stream, want none", trip)
		}
	}
	want := strings.Join(deltas, "")
	if g.Text() != want {
		t.Errorf("Text() = %q, want %q", g.Text(), want)
	}
	if g.Tripped() != nil {
		t.Error("Tripped() non-nil for clean stream")
	}
}

func TestGuardrail_PriorityOrder(t *testing.T) {
	// A delta that violates both max length and newline rules must report
	// max length, the higher priority check.
	g := New(Config{MaxChars: 50})
	trip := g.Feed(strings.Repeat("\n", 200))
	if trip == nil || trip.Kind != KindMaxLength {
		t.Fatalf("trip = %+v, want %s (priority order)", trip, KindMaxLength)
	}
}
