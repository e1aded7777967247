package planner

import (
	"context"
	"strings"

	"github.com/JonMunkholm/tablefix/internal/transform"
)

// DefaultReplacement is used when the request carries no replacement.
const DefaultReplacement = "[REDACTED]"

type keywordRule struct {
	keyword     string
	pattern     string
	explanation string
}

// keywordRules are checked in order; the first keyword found in the
// lower-cased instruction wins.
var keywordRules = []keywordRule{
	{"email", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,7}\b`, "Matches standard email addresses"},
	{"phone", `(?:(?:\+?61|0)[2-478])(?!0)\d{7,8}`, "Rough AU phone detection (not perfect)"},
	{"url", `https?://[^\s]+`, "Matches http/https URLs"},
	{"postcode", `\b\d{4}\b`, "4-digit Australian postcodes"},
}

// regexMarkers make an instruction look like a pattern rather than prose.
var regexMarkers = []string{`\d`, `\w`, `\s`, `\b`, `[A-Z]`, `[a-z]`, `[0-9]`, "("}

// FallbackPattern matches any word; it is deliberately broad so the user
// sees that the instruction was not understood.
const FallbackPattern = `\b\w+\b`

// Heuristic plans without a model.
type Heuristic struct{}

// NewHeuristic returns a Heuristic planner.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Plan emits a single replace candidate chosen by keyword, by treating a
// pattern-looking instruction as the pattern itself, or by falling back to a
// word matcher.
func (h *Heuristic) Plan(_ context.Context, req Request) (*Plan, error) {
	pattern, explanation := infer(req.Instruction)

	replacement := DefaultReplacement
	if req.Replacement != nil {
		replacement = *req.Replacement
	}

	return &Plan{
		IsTableOp: true,
		Intent:    transform.IntentReplace,
		Reason:    explanation,
		Columns:   append([]string{}, req.Columns...),
		Candidates: []Candidate{{
			Engine:      EngineRegex,
			Pattern:     pattern,
			Flags:       []string{},
			Replacement: transform.Ptr(replacement),
			Explanation: explanation,
			RiskNotes:   []string{},
		}},
		Assumptions: []string{"heuristic planner: no language model configured"},
	}, nil
}

func infer(instruction string) (pattern, explanation string) {
	lower := strings.ToLower(instruction)
	for _, r := range keywordRules {
		if strings.Contains(lower, r.keyword) {
			return r.pattern, r.explanation
		}
	}
	for _, m := range regexMarkers {
		if strings.Contains(instruction, m) {
			return strings.TrimSpace(instruction), "User-supplied pattern (treated as regex)"
		}
	}
	return FallbackPattern, "Fallback token matcher (please refine your prompt)"
}
