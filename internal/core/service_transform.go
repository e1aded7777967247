package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tablefix/internal/logging"
	"github.com/JonMunkholm/tablefix/internal/planner"
	"github.com/JonMunkholm/tablefix/internal/session"
	"github.com/JonMunkholm/tablefix/internal/store"
	"github.com/JonMunkholm/tablefix/internal/transform"
)

// Preview asks the planner for a plan without touching any session.
func (s *Service) Preview(ctx context.Context, instruction string, columns []string) (*planner.Plan, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, ErrNoCandidates
	}
	plan, err := s.planner.Plan(ctx, planner.Request{Instruction: instruction, Columns: columns})
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return plan, nil
}

// Transform evaluates candidates against the session's table and stores the
// winning result as the next revision.
//
// Explicit candidates bypass the planner. Columns in the request take
// precedence over columns named by the planner; with neither, every column
// is targeted. Built-in normalizers run on the winning table when requested.
func (s *Service) Transform(ctx context.Context, sessionID string, req TransformRequest) (*TransformResult, error) {
	st, err := s.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ctx = logging.ContextWithSession(ctx, sessionID)
	logger := logging.FromContext(ctx)

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	var plan *planner.Plan
	plans := explicitCandidates(req.Candidates)
	columns := req.Columns

	if len(plans) == 0 {
		if strings.TrimSpace(req.Instruction) == "" {
			return nil, ErrNoCandidates
		}
		plan, err = s.planner.Plan(ctx, planner.Request{
			Instruction: req.Instruction,
			Columns:     st.Table.Columns,
			Replacement: req.Replacement,
		})
		if err != nil {
			return nil, fmt.Errorf("plan: %w", err)
		}
		if !plan.IsTableOp {
			return nil, fmt.Errorf("%w: %s", planner.ErrNotTableOperation, plan.Reason)
		}
		if err := plan.Validate(); err != nil {
			return nil, fmt.Errorf("plan: %w", err)
		}
		plans = plan.CandidatePlans()
		if len(columns) == 0 {
			columns = plan.Columns
		}
	}
	if len(plans) == 0 {
		return nil, ErrNoCandidates
	}

	res, err := transform.EvaluateAndSelect(ctx, st.Table, plans, columns,
		transform.WithMatchTimeout(s.transform.MatchTimeout),
		transform.WithConcurrency(s.transform.Concurrency),
		transform.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	out := res.Table
	var normalized *transform.ChangeStats
	if builtins := builtinCandidates(req); len(builtins) > 0 {
		next, stats, err := transform.ApplyChain(out, builtins, res.Stats.TargetColumns,
			transform.WithMatchTimeout(s.transform.MatchTimeout))
		if err != nil {
			return nil, fmt.Errorf("normalize: %w", err)
		}
		out = next
		normalized = &stats
		logger.Info("built-in normalizers applied",
			"phone", req.ApplyPhoneNormalization,
			"dates", req.ApplyDateNormalization,
			"updated_cells", stats.UpdatedCells,
		)
	}

	next := &session.State{
		Table:     out,
		Filename:  st.Filename,
		Ext:       st.Ext,
		Encoding:  st.Encoding,
		DatasetID: st.DatasetID,
		Revision:  st.Revision + 1,
		UpdatedAt: s.now(),
	}
	if err := s.sessions.Put(ctx, sessionID, next); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.record(ctx, sessionID, req, res, next)

	return &TransformResult{
		SessionID:   sessionID,
		Plan:        plan,
		Selected:    res.Plan,
		Index:       res.Index,
		Stats:       res.Stats,
		Score:       res.Score,
		Normalized:  normalized,
		Diagnostics: res.Diagnostics,
		Skipped:     res.Skipped,
		Revision:    next.Revision,
		RowCount:    out.Len(),
		Preview:     out.Head(s.upload.PreviewRows),
	}, nil
}

// record writes the accepted transformation to the audit trail. Failures are
// logged and otherwise ignored.
func (s *Service) record(ctx context.Context, sessionID string, req TransformRequest, res *transform.Result, st *session.State) {
	logger := logging.FromContext(ctx)

	diag, err := json.Marshal(res.Diagnostics)
	if err != nil {
		logger.Error("encode diagnostics failed", "error", err)
		diag = nil
	}

	tr := &store.Transformation{
		ID:            uuid.New(),
		DatasetID:     st.DatasetID,
		SessionID:     sessionID,
		Instruction:   req.Instruction,
		Intent:        string(res.Plan.Intent),
		Pattern:       res.Plan.Pattern,
		Flags:         res.Plan.Flags,
		Replacement:   res.Plan.Replacement,
		Format:        res.Plan.Format,
		TargetColumns: res.Stats.TargetColumns,
		UpdatedCells:  res.Stats.UpdatedCells,
		UpdatedRows:   res.Stats.UpdatedRows,
		Score:         res.Score,
		Candidates:    len(res.Diagnostics) + len(res.Skipped),
		Diagnostics:   diag,
		Revision:      st.Revision,
		CreatedAt:     st.UpdatedAt,
	}
	if err := s.recorder.RecordTransformation(ctx, tr); err != nil {
		logger.Error("record transformation failed", "dataset_id", st.DatasetID, "error", err)
	}
}

// explicitCandidates copies caller-supplied candidates, defaulting a missing
// intent to replace.
func explicitCandidates(in []transform.CandidatePlan) []transform.CandidatePlan {
	if len(in) == 0 {
		return nil
	}
	out := make([]transform.CandidatePlan, len(in))
	for i, c := range in {
		if c.Intent == "" {
			c.Intent = transform.IntentReplace
		}
		out[i] = c
	}
	return out
}

// builtinCandidates returns the normalizer chain a request asked for.
func builtinCandidates(req TransformRequest) []transform.CandidatePlan {
	var out []transform.CandidatePlan
	if req.ApplyPhoneNormalization {
		out = append(out, planner.AUPhoneCandidate())
	}
	if req.ApplyDateNormalization {
		out = append(out, planner.ISODateCandidates()...)
	}
	return out
}
