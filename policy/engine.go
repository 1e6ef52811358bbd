// Package policy evaluates question-intake authorization with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.question_policy.decision"),
		rego.Module("question_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks whether a question post is authorized.
// Input keys: mode, caller, target_user, severity.
// Returns the policy decision: "allow" or "deny".
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The default policy always defines a decision; an empty result
		// means a custom policy dropped it, so fail closed.
		return "deny", nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "deny", nil
}

// DefaultPolicy is the default authorization policy: single-user deployments
// are open to the authenticated caller, multi-user deployments only let a
// caller post questions targeted at itself.
const DefaultPolicy = `
package question_policy

default decision = "deny"

decision = "allow" {
	input.mode == "single"
}

decision = "allow" {
	input.mode == "multi"
	input.caller == input.target_user
}
`
