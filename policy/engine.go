package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by an admission policy.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Input is the document a start request is evaluated against.
type Input struct {
	Kind           string `json:"kind"`
	Participants   int    `json:"participants"`
	NSteps         int    `json:"n_steps"`
	Repetitions    int    `json:"repetitions"`
	SubRuns        int    `json:"sub_runs"`
	ActiveSessions int    `json:"active_sessions"`
	MaxActive      int    `json:"max_active"`
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allow  bool
	Reason string
}

// Engine is the OPA admission policy engine.
type Engine struct {
	decision rego.PreparedEvalQuery
	reason   rego.PreparedEvalQuery
}

// NewEngine creates a policy engine from rego source defining
// data.session_policy.decision and, optionally, data.session_policy.reason.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	prepare := func(query string) (rego.PreparedEvalQuery, error) {
		return rego.New(
			rego.Query(query),
			rego.Module("session_policy.rego", policyContent),
		).PrepareForEval(ctx)
	}

	decision, err := prepare("data.session_policy.decision")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	reason, err := prepare("data.session_policy.reason")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{decision: decision, reason: reason}, nil
}

// NewEngineFromFile loads the policy at path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks a start request. An undefined decision allows it.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	value, err := evalString(ctx, e.decision, input)
	if err != nil {
		return Decision{}, err
	}
	if value == "" || value == DecisionAllow {
		return Decision{Allow: true}, nil
	}
	if value != DecisionDeny {
		return Decision{}, fmt.Errorf("unexpected policy decision %q", value)
	}

	reason, err := evalString(ctx, e.reason, input)
	if err != nil {
		return Decision{}, err
	}
	if reason == "" {
		reason = "denied by policy"
	}
	return Decision{Allow: false, Reason: reason}, nil
}

func evalString(ctx context.Context, query rego.PreparedEvalQuery, input Input) (string, error) {
	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "", nil
	}
	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("policy returned %T, expected string", results[0].Expressions[0].Value)
	}
	return s, nil
}

// DefaultPolicy is the default admission policy.
const DefaultPolicy = `
package session_policy

default decision = "allow"

decision = "deny" {
	count(deny_reasons) > 0
}

reason = concat("; ", deny_reasons) {
	count(deny_reasons) > 0
}

deny_reasons["active session limit reached"] {
	input.max_active > 0
	input.active_sessions >= input.max_active
}

deny_reasons["a negotiation needs at least two participants"] {
	input.kind == "negotiation"
	input.participants < 2
}

deny_reasons["tournament expands to more than 100000 sub-runs"] {
	input.kind == "tournament"
	input.sub_runs > 100000
}
`
