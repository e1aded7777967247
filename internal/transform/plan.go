// Package transform compiles candidate regex plans, applies them to a table
// and picks the best one.
//
// Candidates arrive from a planner as data. Each one is compiled on its own;
// a candidate that fails to compile or lacks the template its intent needs is
// skipped rather than failing the batch. The surviving candidates are applied
// to the same input table, scored by how many cells they changed, and the
// highest score wins with ties going to the earliest candidate.
package transform

import (
	"encoding/json"
	"slices"
	"strings"
)

// Intent is the kind of edit a candidate performs.
type Intent string

const (
	IntentReplace   Intent = "replace"
	IntentExtract   Intent = "extract"
	IntentMask      Intent = "mask"
	IntentNormalize Intent = "normalize"
	IntentSplit     Intent = "split"
	IntentNone      Intent = "none"
)

// Intents lists every intent in declaration order.
var Intents = []Intent{
	IntentReplace,
	IntentExtract,
	IntentMask,
	IntentNormalize,
	IntentSplit,
	IntentNone,
}

// ParseIntent maps s to an Intent, ignoring case and surrounding space.
// Unknown names become IntentNone, which applies as a no-op.
func ParseIntent(s string) Intent {
	in := Intent(strings.ToLower(strings.TrimSpace(s)))
	if in.Valid() {
		return in
	}
	return IntentNone
}

// Valid reports whether i is one of the declared intents.
func (i Intent) Valid() bool {
	return slices.Contains(Intents, i)
}

// Substitutes reports whether applying i rewrites cells. Extract, split and
// none are routed through the applier but leave every cell untouched.
func (i Intent) Substitutes() bool {
	switch i {
	case IntentReplace, IntentMask, IntentNormalize:
		return true
	case IntentExtract, IntentSplit, IntentNone:
		return false
	}
	return false
}

// UnmarshalJSON accepts any string and normalizes it with ParseIntent.
func (i *Intent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*i = ParseIntent(s)
	return nil
}

// CandidatePlan is one proposed regex transformation.
//
// Replacement is required for replace and mask, Format for normalize. Both
// may reference capture groups as $1, $2 and so on. A nil pointer means the
// field was not supplied; an empty string is a valid template that deletes
// the match.
type CandidatePlan struct {
	Intent      Intent   `json:"intent"`
	Pattern     string   `json:"pattern"`
	Flags       []string `json:"flags,omitempty"`
	Replacement *string  `json:"replacement,omitempty"`
	Format      *string  `json:"format,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	RiskNotes   []string `json:"risk_notes,omitempty"`
}

// Template returns the $N-style template the plan's intent substitutes with.
// ok is false when the intent needs a template the plan does not carry.
// Intents that do not substitute return "", true.
func (p CandidatePlan) Template() (tmpl string, ok bool) {
	switch p.Intent {
	case IntentReplace, IntentMask:
		if p.Replacement == nil {
			return "", false
		}
		return *p.Replacement, true
	case IntentNormalize:
		if p.Format == nil {
			return "", false
		}
		return *p.Format, true
	case IntentExtract, IntentSplit, IntentNone:
		return "", true
	}
	return "", true
}

// Ptr returns a pointer to s, for filling Replacement and Format.
func Ptr(s string) *string {
	return &s
}
