package postprocessors

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

type namedProcessor struct {
	name string
}

func (m *namedProcessor) Name() string { return m.name }
func (m *namedProcessor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	return chunks, nil
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	r.Register("named", func(opts map[string]any) (driven.PostProcessor, error) {
		name, _ := opts["name"].(string)
		if name == "" {
			return nil, errors.New("name required")
		}
		return &namedProcessor{name: name}, nil
	})

	proc, err := r.Build("named", map[string]any{"name": "custom"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if proc.Name() != "custom" {
		t.Errorf("expected name 'custom', got %q", proc.Name())
	}

	if _, err := r.Build("named", nil); err == nil || err.Error() != "named: name required" {
		t.Errorf("expected wrapped builder error, got %v", err)
	}
}

func TestRegistry_Build_UnknownProcessor(t *testing.T) {
	_, err := NewRegistry().Build("missing", nil)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestRegistry_Pipeline(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	p, err := r.Pipeline(
		Stage{Name: ChunkerName, Options: map[string]any{"chunk_size": int64(500), "overlap": float64(100), "structure_aware": false}},
		Stage{Name: FingerprintName},
	)
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	if got := p.String(); got != "chunker -> fingerprint" {
		t.Errorf("unexpected pipeline %q", got)
	}

	if _, err := r.Pipeline(Stage{Name: FingerprintName}, Stage{Name: "stemmer"}); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for unknown stage, got %v", err)
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	want := []string{"chunker", "fingerprint"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if _, err := r.Build(ChunkerName, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration without a chunk size, got %v", err)
	}
}

func TestIntOption(t *testing.T) {
	tests := []struct {
		name     string
		opts     map[string]any
		expected int
	}{
		{"int value", map[string]any{"size": 100}, 100},
		{"int64 value", map[string]any{"size": int64(200)}, 200},
		{"float64 value", map[string]any{"size": float64(300)}, 300},
		{"string value", map[string]any{"size": "400"}, 0},
		{"missing key", map[string]any{"other": 100}, 0},
		{"nil options", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := intOption(tt.opts, "size"); result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}
