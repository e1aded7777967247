package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tablefix/internal/config"
	"github.com/JonMunkholm/tablefix/internal/planner"
	"github.com/JonMunkholm/tablefix/internal/session"
	"github.com/JonMunkholm/tablefix/internal/store"
	"github.com/JonMunkholm/tablefix/internal/table"
	"github.com/JonMunkholm/tablefix/internal/transform"
)

const contactsCSV = "name,email,phone,joined\n" +
	"Ann,ann@example.com,0412345678,31/12/2024\n" +
	"Bob,none,0298765432,1/2/2024\n" +
	"Cy,cy@site.org,n/a,2024/03/05\n"

// ============================================================================
// Upload Tests
// ============================================================================

func TestService_Upload(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := WithClient(context.Background(), Client{IP: "10.0.0.1"})
	id := svc.NewSession()

	res, err := svc.Upload(ctx, id, "contacts.csv", []byte(contactsCSV))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.RowCount != 3 || len(res.Columns) != 4 {
		t.Errorf("got %d rows, %d columns; want 3, 4", res.RowCount, len(res.Columns))
	}
	if res.Delimiter != "," || res.Encoding == "" {
		t.Errorf("Delimiter = %q, Encoding = %q", res.Delimiter, res.Encoding)
	}
	if res.Preview.Len() != 2 {
		t.Errorf("Preview.Len() = %d, want 2", res.Preview.Len())
	}

	if len(rec.datasets) != 1 {
		t.Fatalf("recorded %d datasets, want 1", len(rec.datasets))
	}
	if ds := rec.datasets[0]; ds.ID != res.DatasetID || ds.IPAddress != "10.0.0.1" || ds.RowCount != 3 {
		t.Errorf("recorded dataset = %+v", ds)
	}

	cur, err := svc.Current(ctx, id)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if cur.Len() != 3 {
		t.Errorf("Current().Len() = %d, want 3", cur.Len())
	}
}

func TestService_UploadErrors(t *testing.T) {
	svc, _ := newTestService(t)
	id := svc.NewSession()

	tests := []struct {
		name     string
		session  string
		filename string
		data     []byte
		want     error
	}{
		{"invalid session", "nope", "a.csv", []byte("a\n1\n"), session.ErrInvalidID},
		{"empty file", id, "a.csv", nil, ErrEmptyFile},
		{"too large", id, "a.csv", []byte(strings.Repeat("x", 2048)), ErrFileTooLarge},
		{"unsupported", id, "a.pdf", []byte("%PDF"), table.ErrUnsupportedFormat},
		{"corrupt workbook", id, "a.xlsx", []byte("not a zip"), ErrUnreadableFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.session, tt.filename, tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Upload() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// ============================================================================
// Transform Tests
// ============================================================================

func TestService_TransformWithPlanner(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	id := upload(t, svc)

	res, err := svc.Transform(ctx, id, TransformRequest{
		Instruction: "redact email addresses",
		Columns:     []string{"email"},
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if res.Plan == nil || res.Plan.Intent != transform.IntentReplace {
		t.Errorf("Plan = %+v, want heuristic replace plan", res.Plan)
	}
	if res.Stats.UpdatedCells != 2 || res.Revision != 1 {
		t.Errorf("Stats = %+v, Revision = %d", res.Stats, res.Revision)
	}

	cur, _ := svc.Current(ctx, id)
	if cur.Rows[0][1] != planner.DefaultReplacement || cur.Rows[1][1] != "none" {
		t.Errorf("email column = %q, %q", cur.Rows[0][1], cur.Rows[1][1])
	}

	if len(rec.transformations) != 1 {
		t.Fatalf("recorded %d transformations, want 1", len(rec.transformations))
	}
	if tr := rec.transformations[0]; tr.Instruction != "redact email addresses" || tr.Revision != 1 || tr.UpdatedCells != 2 {
		t.Errorf("recorded transformation = %+v", tr)
	}
}

func TestService_TransformExplicitCandidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := upload(t, svc)

	res, err := svc.Transform(ctx, id, TransformRequest{
		Columns: []string{"name"},
		Candidates: []transform.CandidatePlan{
			{Pattern: `zzz`, Replacement: transform.Ptr("-")},
			{Pattern: `^(\w)\w*$`, Replacement: transform.Ptr("$1.")},
		},
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if res.Plan != nil {
		t.Error("explicit candidates should bypass the planner")
	}
	if res.Index != 1 || res.Selected.Intent != transform.IntentReplace {
		t.Errorf("selected index %d intent %q, want 1 replace", res.Index, res.Selected.Intent)
	}

	cur, _ := svc.Current(ctx, id)
	if cur.Rows[2][0] != "C." {
		t.Errorf("name = %q, want %q", cur.Rows[2][0], "C.")
	}
}

func TestService_TransformNormalizers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := upload(t, svc)

	res, err := svc.Transform(ctx, id, TransformRequest{
		Columns:                 []string{"phone", "joined"},
		Candidates:              []transform.CandidatePlan{{Pattern: `n/a`, Replacement: transform.Ptr("")}},
		ApplyPhoneNormalization: true,
		ApplyDateNormalization:  true,
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if res.Normalized == nil || res.Normalized.UpdatedCells != 5 {
		t.Errorf("Normalized = %+v, want 5 cells", res.Normalized)
	}

	cur, _ := svc.Current(ctx, id)
	want := [][]string{
		{"+61412345678", "2024-12-31"},
		{"+61298765432", "2024-02-01"},
		{"", "2024-03-05"},
	}
	for i, w := range want {
		if cur.Rows[i][2] != w[0] || cur.Rows[i][3] != w[1] {
			t.Errorf("row %d = %v, want phone/joined %v", i, cur.Rows[i], w)
		}
	}
}

func TestService_TransformErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := upload(t, svc)

	tests := []struct {
		name    string
		session string
		req     TransformRequest
		want    error
	}{
		{"unknown session", session.NewID(), TransformRequest{Instruction: "email"}, session.ErrNotFound},
		{"nothing to do", id, TransformRequest{}, ErrNoCandidates},
		{"nothing matched", id, TransformRequest{Candidates: []transform.CandidatePlan{{Pattern: `qqq`, Replacement: transform.Ptr("")}}}, transform.ErrNoViableCandidate},
		{"nothing compiled", id, TransformRequest{Candidates: []transform.CandidatePlan{{Pattern: `(`, Replacement: transform.Ptr("")}}}, transform.ErrNoViableCandidate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transform(ctx, tt.session, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Transform() error = %v, want %v", err, tt.want)
			}
		})
	}

	// A failed transform leaves the table untouched.
	info, err := svc.Info(ctx, id)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.Revision != 0 {
		t.Errorf("Revision = %d, want 0", info.Revision)
	}
}

func TestService_TransformNotTableOp(t *testing.T) {
	svc, _ := newTestService(t)
	svc.planner = stubPlanner{plan: &planner.Plan{IsTableOp: false, Intent: transform.IntentNone, Reason: "small talk"}}
	id := upload(t, svc)

	_, err := svc.Transform(context.Background(), id, TransformRequest{Instruction: "hello there"})
	if !errors.Is(err, planner.ErrNotTableOperation) {
		t.Fatalf("error = %v, want ErrNotTableOperation", err)
	}
	if got := MapError(err).Code; got != "PLAN002" {
		t.Errorf("code = %q, want PLAN002", got)
	}
}

func TestService_TransformSkipsUntemplatedCandidate(t *testing.T) {
	svc, _ := newTestService(t)
	svc.planner = stubPlanner{plan: &planner.Plan{
		IsTableOp: true,
		Intent:    transform.IntentReplace,
		Columns:   []string{"email"},
		Candidates: []planner.Candidate{
			{Engine: planner.EngineRegex, Pattern: `@`},
			{Engine: planner.EngineRegex, Pattern: `\w+@\w+\.\w+`, Replacement: transform.Ptr("[hidden]")},
		},
	}}
	id := upload(t, svc)

	res, err := svc.Transform(context.Background(), id, TransformRequest{Instruction: "hide emails"})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if res.Stats.UpdatedCells != 2 {
		t.Errorf("UpdatedCells = %d, want 2", res.Stats.UpdatedCells)
	}
	if len(res.Skipped) != 1 || !errors.Is(res.Skipped[0].Err, transform.ErrMissingTemplate) {
		t.Errorf("Skipped = %+v, want one missing-template skip", res.Skipped)
	}
}

func TestService_SessionsAreIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := upload(t, svc)
	b := upload(t, svc)

	if _, err := svc.Transform(ctx, a, TransformRequest{Instruction: "email", Columns: []string{"email"}}); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	ta, _ := svc.Current(ctx, a)
	tb, _ := svc.Current(ctx, b)
	if ta.Equal(*tb) {
		t.Error("transform in one session changed another")
	}
	if tb.Rows[0][1] != "ann@example.com" {
		t.Errorf("session b email = %q", tb.Rows[0][1])
	}
}

func TestService_ConcurrentTransformsAcrossSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ids := make([]string, 6)
	for i := range ids {
		ids[i] = upload(t, svc)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Transform(ctx, id, TransformRequest{Instruction: "email", Columns: []string{"email"}}); err != nil {
				t.Errorf("Transform(%s) error = %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		info, err := svc.Info(ctx, id)
		if err != nil || info.Revision != 1 {
			t.Errorf("session %s: revision %v, err %v", id, info, err)
		}
	}
}

func TestService_HistoryAndEndSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := upload(t, svc)

	for _, instr := range []string{"email", "phone"} {
		if _, err := svc.Transform(ctx, id, TransformRequest{Instruction: instr}); err != nil {
			t.Fatalf("Transform(%q) error = %v", instr, err)
		}
	}

	hist, err := svc.History(ctx, id, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(hist) != 2 || hist[0].Instruction != "phone" {
		t.Errorf("History() = %+v, want 2 entries newest first", hist)
	}

	if err := svc.EndSession(ctx, id); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if _, err := svc.Current(ctx, id); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Current() after EndSession error = %v, want ErrNotFound", err)
	}
}

func TestService_Preview(t *testing.T) {
	svc, _ := newTestService(t)

	plan, err := svc.Preview(context.Background(), "mask phone numbers", []string{"phone"})
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(plan.Candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(plan.Candidates))
	}

	if _, err := svc.Preview(context.Background(), "  ", nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("empty instruction error = %v, want ErrNoCandidates", err)
	}
}

// ============================================================================
// Helpers
// ============================================================================

func newTestService(t *testing.T) (*Service, *memoryRecorder) {
	t.Helper()
	cfg := &config.Config{
		Upload: config.UploadConfig{MaxFileSize: 1024, PreviewRows: 2},
		Transform: config.TransformConfig{
			MatchTimeout:  time.Second,
			Concurrency:   2,
			MaxConcurrent: 2,
			MaxWaitTime:   5 * time.Second,
		},
	}
	rec := &memoryRecorder{}
	return NewService(session.NewMemoryStore(time.Hour), rec, nil, cfg), rec
}

func upload(t *testing.T, svc *Service) string {
	t.Helper()
	id := svc.NewSession()
	if _, err := svc.Upload(context.Background(), id, "contacts.csv", []byte(contactsCSV)); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	return id
}

type memoryRecorder struct {
	mu              sync.Mutex
	datasets        []store.Dataset
	transformations []store.Transformation
}

func (r *memoryRecorder) RecordDataset(_ context.Context, d *store.Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets = append(r.datasets, *d)
	return nil
}

func (r *memoryRecorder) RecordTransformation(_ context.Context, tr *store.Transformation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transformations = append(r.transformations, *tr)
	return nil
}

func (r *memoryRecorder) History(_ context.Context, datasetID uuid.UUID, limit int) ([]store.Transformation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []store.Transformation{}
	for i := len(r.transformations) - 1; i >= 0 && len(out) < limit; i-- {
		if r.transformations[i].DatasetID == datasetID {
			out = append(out, r.transformations[i])
		}
	}
	return out, nil
}

type stubPlanner struct {
	plan *planner.Plan
	err  error
}

func (s stubPlanner) Plan(context.Context, planner.Request) (*planner.Plan, error) {
	return s.plan, s.err
}
