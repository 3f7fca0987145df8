// Package simulation drives scripted or LLM-played customers against the
// consultant to exercise whole conversations.
package simulation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxTurns bounds a scenario that does not set max_turns.
const DefaultMaxTurns = 10

//go:embed scenarios.yaml
var defaultScenarios []byte

// Scenario describes one simulated customer.
type Scenario struct {
	Name string `yaml:"name"`
	// Persona is the system prompt of an LLM-played customer.
	Persona  string `yaml:"persona"`
	Opening  string `yaml:"opening"`
	MaxTurns int    `yaml:"max_turns"`
	// Replies, when set, are sent in order instead of asking the persona model.
	Replies []string `yaml:"replies"`
}

// Scripted reports whether the scenario uses canned replies.
func (s Scenario) Scripted() bool {
	return len(s.Replies) > 0
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// DefaultScenarios returns the built-in scenarios.
func DefaultScenarios() []Scenario {
	scenarios, err := ParseScenarios(defaultScenarios)
	if err != nil {
		panic(fmt.Sprintf("built-in scenarios are invalid: %v", err))
	}
	return scenarios
}

// LoadScenarios reads scenarios from a YAML file.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}
	return ParseScenarios(data)
}

// ParseScenarios decodes and validates a scenario document.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, errors.New("no scenarios defined")
	}

	seen := make(map[string]bool, len(file.Scenarios))
	var errs []error
	for i := range file.Scenarios {
		sc := &file.Scenarios[i]
		sc.Name = strings.TrimSpace(sc.Name)
		sc.Opening = strings.TrimSpace(sc.Opening)
		if sc.MaxTurns <= 0 {
			sc.MaxTurns = DefaultMaxTurns
		}
		switch {
		case sc.Name == "":
			errs = append(errs, fmt.Errorf("scenario %d: name is required", i))
			continue
		case seen[sc.Name]:
			errs = append(errs, fmt.Errorf("scenario %q: duplicate name", sc.Name))
		}
		seen[sc.Name] = true
		if sc.Opening == "" {
			errs = append(errs, fmt.Errorf("scenario %q: opening is required", sc.Name))
		}
		if !sc.Scripted() && strings.TrimSpace(sc.Persona) == "" {
			errs = append(errs, fmt.Errorf("scenario %q: persona or replies is required", sc.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return file.Scenarios, nil
}

// Select returns the scenarios with the given names, in the order given.
// No names selects all of them.
func Select(scenarios []Scenario, names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return scenarios, nil
	}
	byName := make(map[string]Scenario, len(scenarios))
	for _, sc := range scenarios {
		byName[sc.Name] = sc
	}
	out := make([]Scenario, 0, len(names))
	for _, name := range names {
		sc, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		out = append(out, sc)
	}
	return out, nil
}
