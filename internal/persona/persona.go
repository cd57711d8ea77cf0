// Package persona defines the behavioral agents that trade in the benchmark
// and implements the decision producer that turns one outcome-free snapshot
// into one committed decision per persona.
package persona

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona describes one behavioral agent: who it is and how it decides.
// Personas share nothing at runtime; each request carries only the snapshot
// and its own configuration.
type Persona struct {
	ID     string   `yaml:"id"`
	Name   string   `yaml:"name"`
	Traits []string `yaml:"traits"`
	Style  string   `yaml:"style"`
	// MaxStake caps the dollar stake the persona is told it may risk on one
	// market. The settlement engine enforces the real balance bound; this is
	// only guidance in the prompt.
	MaxStake float64 `yaml:"max_stake"`
}

// Validate checks the fields a persona needs to participate in a round.
func (p Persona) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("persona: id is required")
	}
	if strings.TrimSpace(p.Style) == "" {
		return fmt.Errorf("persona %s: style is required", p.ID)
	}
	if p.MaxStake < 0 {
		return fmt.Errorf("persona %s: max_stake must be non-negative", p.ID)
	}
	return nil
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads persona definitions from a YAML file, validates them, and
// returns them sorted by ID ascending. ID order is the canonical collection
// order for rounds, so sorting here makes reveal logs reproducible no matter
// how the file is arranged.
func LoadFile(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}

	var f personaFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("persona: parse %s: %w", path, err)
	}
	if len(f.Personas) == 0 {
		return nil, fmt.Errorf("persona: %s defines no personas", path)
	}

	seen := make(map[string]bool, len(f.Personas))
	for _, p := range f.Personas {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("persona: duplicate id %q in %s", p.ID, path)
		}
		seen[p.ID] = true
	}

	sort.Slice(f.Personas, func(i, j int) bool {
		return f.Personas[i].ID < f.Personas[j].ID
	})
	return f.Personas, nil
}
