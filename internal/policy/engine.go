// Package policy guards dialogue phase transitions with an embedded Rego policy.
package policy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

//go:embed dialogue_phase.rego
var DefaultPolicy string

// Decision is the outcome of evaluating one transition.
type Decision struct {
	Allow bool
	Next  domain.Phase
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the phase policy. An empty policyContent selects DefaultPolicy.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	if policyContent == "" {
		policyContent = DefaultPolicy
	}
	r := rego.New(
		rego.Query("data.dialogue_phase.decision"),
		rego.Module("dialogue_phase.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate decides whether an envelope of type envType may be emitted in phase.
// A degraded envelope never moves the phase.
func (e *Engine) Evaluate(ctx context.Context, phase domain.Phase, envType domain.EnvelopeType, degraded bool) (Decision, error) {
	input := map[string]interface{}{
		"phase":    string(phase),
		"type":     string(envType),
		"degraded": degraded,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("no decision for phase %q and type %q", phase, envType)
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, errors.New("policy decision is not an object")
	}
	allow, _ := obj["allow"].(bool)
	nextRaw, _ := obj["next"].(string)
	next, ok := domain.ParsePhase(nextRaw)
	if !ok || nextRaw == "" {
		return Decision{}, fmt.Errorf("policy returned unknown phase %q", nextRaw)
	}
	return Decision{Allow: allow, Next: next}, nil
}
