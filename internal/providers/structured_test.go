package providers

import (
	"testing"
)

func TestDecodeComponents(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{
			name: "clean payload",
			raw:  `{"components":[{"type":"text","text":"hello"},{"type":"table","text":"a|b"}]}`,
			want: 2,
		},
		{
			name: "fenced payload",
			raw:  "Here is the result:\n```json\n{\"components\":[{\"type\":\"text\",\"text\":\"body\"}]}\n```\nDone.",
			want: 1,
		},
		{
			name:    "missing components key",
			raw:     `{"pages":[]}`,
			wantErr: true,
		},
		{
			name:    "wrong component type",
			raw:     `{"components":[{"type":"chart","text":"x"}]}`,
			wantErr: true,
		},
		{
			name:    "no json at all",
			raw:     "the model rambled without structure",
			wantErr: true,
		},
		{
			name:    "truncated json",
			raw:     `{"components":[{"type":"text","text":"cut of`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeComponents(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeComponents() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeComponents() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len(components) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestExtractJSON_NestedBraces(t *testing.T) {
	raw := `prefix {"components":[{"type":"text","text":"a {nested} brace","metadata":{"k":"v"}}]} suffix`
	got := extractJSON(raw)
	want := `{"components":[{"type":"text","text":"a {nested} brace","metadata":{"k":"v"}}]}`
	if got != want {
		t.Errorf("extractJSON() = %q, want %q", got, want)
	}
}
