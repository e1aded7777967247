package planner

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/tablefix/internal/table"
	"github.com/JonMunkholm/tablefix/internal/transform"
)

// ============================================================================
// Heuristic Tests
// ============================================================================

func TestHeuristic_Plan(t *testing.T) {
	tests := []struct {
		name        string
		instruction string
		wantPattern string
	}{
		{"email keyword", "Redact every Email address", keywordRules[0].pattern},
		{"phone keyword", "mask phone numbers", keywordRules[1].pattern},
		{"url keyword", "remove the URL", keywordRules[2].pattern},
		{"postcode keyword", "hide postcodes", keywordRules[3].pattern},
		{"first keyword wins", "phone or email", keywordRules[0].pattern},
		{"pattern-looking input", `  \d{3}-\d{4} `, `\d{3}-\d{4}`},
		{"fallback", "do something clever", FallbackPattern},
	}

	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := h.Plan(context.Background(), Request{Instruction: tt.instruction})
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if len(plan.Candidates) != 1 {
				t.Fatalf("candidates = %d, want 1", len(plan.Candidates))
			}
			if got := plan.Candidates[0].Pattern; got != tt.wantPattern {
				t.Errorf("pattern = %q, want %q", got, tt.wantPattern)
			}
			if err := plan.Validate(); err != nil {
				t.Errorf("heuristic plan does not validate: %v", err)
			}
		})
	}
}

func TestHeuristic_Replacement(t *testing.T) {
	h := NewHeuristic()

	plan, _ := h.Plan(context.Background(), Request{Instruction: "email"})
	if got := *plan.Candidates[0].Replacement; got != DefaultReplacement {
		t.Errorf("default replacement = %q, want %q", got, DefaultReplacement)
	}

	plan, _ = h.Plan(context.Background(), Request{Instruction: "email", Replacement: transform.Ptr("")})
	if got := *plan.Candidates[0].Replacement; got != "" {
		t.Errorf("explicit empty replacement = %q, want empty", got)
	}
}

func TestHeuristic_EmailEndToEnd(t *testing.T) {
	tbl := table.Table{
		Columns: []string{"who", "contact"},
		Rows:    [][]string{{"ann", "ann@example.com"}, {"bob", "n/a"}},
	}
	plan, _ := NewHeuristic().Plan(context.Background(), Request{Instruction: "mask emails"})

	res, err := transform.EvaluateAndSelect(context.Background(), tbl, plan.CandidatePlans(), []string{"contact"})
	if err != nil {
		t.Fatalf("EvaluateAndSelect() error = %v", err)
	}
	if got := res.Table.Rows[0][1]; got != DefaultReplacement {
		t.Errorf("contact = %q, want %q", got, DefaultReplacement)
	}
	if res.Stats.UpdatedCells != 1 {
		t.Errorf("UpdatedCells = %d, want 1", res.Stats.UpdatedCells)
	}
}

// ============================================================================
// Plan Tests
// ============================================================================

func TestPlan_Validate(t *testing.T) {
	cand := func(mut func(*Candidate)) []Candidate {
		c := Candidate{Engine: EngineRegex, Pattern: `x`, Replacement: transform.Ptr("y"), Format: transform.Ptr("z")}
		mut(&c)
		return []Candidate{c}
	}
	noop := func(*Candidate) {}

	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
	}{
		{"valid replace", Plan{IsTableOp: true, Intent: transform.IntentReplace, Candidates: cand(noop)}, false},
		{"not a table op", Plan{IsTableOp: false, Intent: "bogus"}, false},
		{"unknown intent", Plan{IsTableOp: true, Intent: "bogus"}, true},
		{"other engine", Plan{IsTableOp: true, Intent: transform.IntentReplace, Candidates: cand(func(c *Candidate) { c.Engine = "pcre" })}, true},
		{"empty pattern", Plan{IsTableOp: true, Intent: transform.IntentReplace, Candidates: cand(func(c *Candidate) { c.Pattern = "" })}, true},
		{"mask without replacement left to evaluation", Plan{IsTableOp: true, Intent: transform.IntentMask, Candidates: cand(func(c *Candidate) { c.Replacement = nil })}, false},
		{"empty replacement allowed", Plan{IsTableOp: true, Intent: transform.IntentReplace, Candidates: cand(func(c *Candidate) { c.Replacement = transform.Ptr("") })}, false},
		{"normalize without format left to evaluation", Plan{IsTableOp: true, Intent: transform.IntentNormalize, Candidates: cand(func(c *Candidate) { c.Format = nil })}, false},
		{"extract needs no template", Plan{IsTableOp: true, Intent: transform.IntentExtract, Candidates: cand(func(c *Candidate) { c.Replacement, c.Format = nil, nil })}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("error %v does not wrap ErrInvalidPlan", err)
			}
		})
	}
}

func TestPlan_CandidatePlansCarryIntent(t *testing.T) {
	p := Plan{
		IsTableOp: true,
		Intent:    transform.IntentMask,
		Candidates: []Candidate{
			{Pattern: "a", Replacement: transform.Ptr("*")},
			{Pattern: "b", Replacement: transform.Ptr("*"), Flags: []string{"I"}},
		},
	}

	got := p.CandidatePlans()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for i, cp := range got {
		if cp.Intent != transform.IntentMask {
			t.Errorf("[%d] intent = %q, want mask", i, cp.Intent)
		}
	}
	if got[1].Pattern != "b" || len(got[1].Flags) != 1 {
		t.Errorf("[1] = %+v", got[1])
	}
}

// ============================================================================
// Builtin Tests
// ============================================================================

func TestAUPhoneCandidate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0412345678", "+61412345678"},
		{"61298765432", "+61298765432"},
		{"+61412345678", "+61412345678"},
		{"call 0398765432 now", "call +61398765432 now"},
		{"n/a", "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tbl := table.Table{Columns: []string{"phone"}, Rows: [][]string{{tt.in}}}
			out, _, err := transform.ApplyChain(tbl, []transform.CandidatePlan{AUPhoneCandidate()}, nil)
			if err != nil {
				t.Fatalf("ApplyChain() error = %v", err)
			}
			if got := out.Rows[0][0]; got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestISODateCandidates(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"31/12/2024", "2024-12-31"},
		{"31-12-2024", "2024-12-31"},
		{"1/2/2024", "2024-02-01"},
		{"5/11/2024", "2024-11-05"},
		{"15/3/2024", "2024-03-15"},
		{"2024/12/31", "2024-12-31"},
		{"2024.01.09", "2024-01-09"},
		{"2024-12-31", "2024-12-31"},
		{"due 1/2/2024", "due 2024-02-01"},
		{"no date", "no date"},
		{"29/02/2024", "2024-02-29"},
		{"2000/02/29", "2000-02-29"},
		{"30/4/2024", "2024-04-30"},

		// Not calendar dates, left as typed.
		{"12/31/2024", "12/31/2024"},
		{"31/02/2024", "31/02/2024"},
		{"99/99/2024", "99/99/2024"},
		{"29/02/2023", "29/02/2023"},
		{"31/4/2024", "31/4/2024"},
		{"2024/13/01", "2024/13/01"},
		{"1900.02.29", "1900.02.29"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tbl := table.Table{Columns: []string{"when"}, Rows: [][]string{{tt.in}}}
			out, _, err := transform.ApplyChain(tbl, ISODateCandidates(), nil)
			if err != nil {
				t.Fatalf("ApplyChain() error = %v", err)
			}
			if got := out.Rows[0][0]; got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// ============================================================================
// OpenAI Tests
// ============================================================================

const goodPlanJSON = `{
  "is_table_op": true,
  "intent": "mask",
  "reason": "emails",
  "columns": [],
  "candidates": [
    {"engine": "regex", "pattern": "\\S+@\\S+", "flags": [], "replacement": "***", "format": null, "explanation": "a", "risk_notes": []},
    {"engine": "regex", "pattern": "[a-z]+@[a-z.]+", "flags": ["IGNORECASE"], "replacement": "***", "format": null, "explanation": "b", "risk_notes": []}
  ],
  "assumptions": []
}`

func newTestOpenAI(complete completeFunc, attempts, maxCandidates int) *OpenAI {
	return &OpenAI{
		complete:      complete,
		maxCandidates: maxCandidates,
		maxAttempts:   attempts,
		backoffBase:   time.Millisecond,
		backoffCap:    5 * time.Millisecond,
	}
}

func TestOpenAI_Plan(t *testing.T) {
	var gotUser string
	o := newTestOpenAI(func(_ context.Context, _, user string) (string, error) {
		gotUser = user
		return goodPlanJSON, nil
	}, 3, 3)

	plan, err := o.Plan(context.Background(), Request{Instruction: "mask emails", Columns: []string{"email"}})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Intent != transform.IntentMask || len(plan.Candidates) != 2 {
		t.Errorf("plan = %+v", plan)
	}
	if !strings.Contains(gotUser, "mask emails") || !strings.Contains(gotUser, `["email"]`) {
		t.Errorf("user prompt missing instruction or columns:\n%s", gotUser)
	}
}

func TestOpenAI_RetriesBadResponses(t *testing.T) {
	var calls atomic.Int32
	o := newTestOpenAI(func(context.Context, string, string) (string, error) {
		switch calls.Add(1) {
		case 1:
			return "not json at all", nil
		case 2:
			return "", errors.New("connection reset")
		default:
			return "Sure! Here you go:\n" + goodPlanJSON + "\nThanks.", nil
		}
	}, 3, 3)

	plan, err := o.Plan(context.Background(), Request{Instruction: "x"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(plan.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(plan.Candidates))
	}
}

func TestOpenAI_GivesUp(t *testing.T) {
	var calls atomic.Int32
	o := newTestOpenAI(func(context.Context, string, string) (string, error) {
		calls.Add(1)
		return `{"is_table_op": true, "intent": "normalize", "candidates": [{"engine": "pcre", "pattern": "x", "format": "y"}]}`, nil
	}, 2, 3)

	_, err := o.Plan(context.Background(), Request{Instruction: "x"})
	if !errors.Is(err, ErrBadResponse) || !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("error = %v, want ErrBadResponse wrapping ErrInvalidPlan", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestOpenAI_KeepsPlanWithUntemplatedCandidate(t *testing.T) {
	var calls atomic.Int32
	o := newTestOpenAI(func(context.Context, string, string) (string, error) {
		calls.Add(1)
		return `{"is_table_op": true, "intent": "replace", "candidates": [
			{"engine": "regex", "pattern": "a"},
			{"engine": "regex", "pattern": "b", "replacement": "B"}
		]}`, nil
	}, 3, 3)

	plan, err := o.Plan(context.Background(), Request{Instruction: "x"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if len(plan.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(plan.Candidates))
	}
}

func TestOpenAI_TruncatesCandidates(t *testing.T) {
	o := newTestOpenAI(func(context.Context, string, string) (string, error) {
		return goodPlanJSON, nil
	}, 1, 1)

	plan, err := o.Plan(context.Background(), Request{Instruction: "x"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(plan.Candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(plan.Candidates))
	}
}

func TestPlanSchema(t *testing.T) {
	if PlanSchema == nil {
		t.Fatal("PlanSchema is nil")
	}
}
