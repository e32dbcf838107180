package repro

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"txrecon/internal/domain"
)

// FixtureSource reads a reproduction recorded as JSON:
//
//	{"txHash": "0x..", "logs": [{"address", "topics", "data"}], "customEvents": [{"name", "address", "args"}]}
type FixtureSource struct {
	path string
}

// NewFixtureSource creates a source reading path.
func NewFixtureSource(path string) *FixtureSource {
	return &FixtureSource{path: path}
}

// Compile-time interface check.
var _ Source = (*FixtureSource)(nil)

// Reproduce reads and validates the fixture.
func (s *FixtureSource) Reproduce(ctx context.Context) (*domain.Reproduction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a reproduction fixture.
func ParseFixture(data []byte) (*domain.Reproduction, error) {
	var r domain.Reproduction
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if r.Logs == nil {
		return nil, fmt.Errorf("%w: missing logs", ErrInvalidFixture)
	}
	for i, ev := range r.CustomEvents {
		if ev.Name == "" {
			return nil, fmt.Errorf("%w: custom event %d has no name", ErrInvalidFixture, i)
		}
		if ev.Args == nil {
			r.CustomEvents[i].Args = map[string]string{}
		}
	}
	return &r, nil
}
