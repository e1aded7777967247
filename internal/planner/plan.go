// Package planner turns a natural-language instruction into candidate regex
// plans.
//
// Two planners exist. Heuristic needs no network and recognizes a handful of
// common requests (emails, phone numbers, URLs, postcodes). OpenAI asks any
// OpenAI-compatible chat endpoint for a structured plan and validates it
// before it reaches the transform engine.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/tablefix/internal/transform"
)

// ErrInvalidPlan is matched by every plan validation failure.
var ErrInvalidPlan = errors.New("invalid plan")

// ErrNotTableOperation is returned by callers when the planner decided the
// instruction is not a table edit.
var ErrNotTableOperation = errors.New("instruction is not a table operation")

// EngineRegex is the only engine a candidate may name.
const EngineRegex = "regex"

// Request is what a planner is asked.
type Request struct {
	Instruction string
	Columns     []string

	// Replacement is used by planners that cannot infer one.
	Replacement *string
}

// Planner proposes candidates for an instruction.
type Planner interface {
	Plan(ctx context.Context, req Request) (*Plan, error)
}

// Candidate is one proposed pattern as the planner emits it.
type Candidate struct {
	Engine      string   `json:"engine" jsonschema:"enum=regex" jsonschema_description:"Always regex"`
	Pattern     string   `json:"pattern" jsonschema_description:"Regular expression, .NET/Python compatible"`
	Flags       []string `json:"flags" jsonschema_description:"Flag names such as IGNORECASE, MULTILINE, DOTALL, UNICODE"`
	Replacement *string  `json:"replacement" jsonschema:"nullable" jsonschema_description:"Required for replace and mask; may use $1, $2 backreferences"`
	Format      *string  `json:"format" jsonschema:"nullable" jsonschema_description:"Required for normalize; uses $1, $2 capture groups"`
	Explanation string   `json:"explanation"`
	RiskNotes   []string `json:"risk_notes"`
}

// Plan is a planner's full answer.
type Plan struct {
	IsTableOp   bool             `json:"is_table_op"`
	Intent      transform.Intent `json:"intent" jsonschema:"enum=replace,enum=extract,enum=mask,enum=normalize,enum=split,enum=none"`
	Reason      string           `json:"reason"`
	Columns     []string         `json:"columns"`
	Candidates  []Candidate      `json:"candidates"`
	Assumptions []string         `json:"assumptions"`
}

// Validate checks the structural rules a plan must satisfy before its
// candidates are evaluated. Non-table plans are always valid. A candidate
// without the template its intent needs is not an error here; evaluation
// skips it and reports why.
func (p *Plan) Validate() error {
	if !p.IsTableOp {
		return nil
	}
	if !p.Intent.Valid() {
		return fmt.Errorf("%w: unknown intent %q", ErrInvalidPlan, p.Intent)
	}
	for i, c := range p.Candidates {
		if c.Engine != "" && c.Engine != EngineRegex {
			return fmt.Errorf("%w: candidate %d: only the %q engine is supported", ErrInvalidPlan, i, EngineRegex)
		}
		if c.Pattern == "" {
			return fmt.Errorf("%w: candidate %d: empty pattern", ErrInvalidPlan, i)
		}
	}
	return nil
}

// CandidatePlans converts the plan's candidates into transform plans, each
// carrying the plan-level intent.
func (p *Plan) CandidatePlans() []transform.CandidatePlan {
	out := make([]transform.CandidatePlan, len(p.Candidates))
	for i, c := range p.Candidates {
		out[i] = transform.CandidatePlan{
			Intent:      p.Intent,
			Pattern:     c.Pattern,
			Flags:       c.Flags,
			Replacement: c.Replacement,
			Format:      c.Format,
			Explanation: c.Explanation,
			RiskNotes:   c.RiskNotes,
		}
	}
	return out
}
