package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/tablefix/internal/config"
	"github.com/JonMunkholm/tablefix/internal/logging"
	"github.com/JonMunkholm/tablefix/internal/planner"
	"github.com/JonMunkholm/tablefix/internal/session"
	"github.com/JonMunkholm/tablefix/internal/store"
	"github.com/JonMunkholm/tablefix/internal/table"
)

// Service provides the core business logic for table cleanup sessions.
type Service struct {
	sessions session.Store
	recorder store.Recorder
	planner  planner.Planner
	limiter  *Limiter

	upload    config.UploadConfig
	transform config.TransformConfig

	now func() time.Time
}

// NewService creates a Service. A nil recorder disables the audit trail and a
// nil planner selects the heuristic planner.
func NewService(sessions session.Store, recorder store.Recorder, p planner.Planner, cfg *config.Config) *Service {
	if recorder == nil {
		recorder = store.NopRecorder{}
	}
	if p == nil {
		p = planner.NewHeuristic()
	}
	return &Service{
		sessions:  sessions,
		recorder:  recorder,
		planner:   p,
		limiter:   NewLimiter(cfg.Transform.MaxConcurrent, cfg.Transform.MaxWaitTime),
		upload:    cfg.Upload,
		transform: cfg.Transform,
		now:       time.Now,
	}
}

// Limiter returns the transform limiter, for status reporting and draining
// on shutdown.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// PreviewRows returns how many rows previews include.
func (s *Service) PreviewRows() int {
	return s.upload.PreviewRows
}

// NewSession issues a fresh session id. Nothing is stored until the first
// upload.
func (s *Service) NewSession() string {
	return session.NewID()
}

// EndSession drops a session's table.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if err := session.ValidateID(sessionID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	logging.FromContext(ctx).Info("session ended", "session_id", sessionID)
	return nil
}

// state loads a session slot, validating the id first.
func (s *Service) state(ctx context.Context, sessionID string) (*session.State, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}
	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return st, nil
}

// Current returns the session's current table.
func (s *Service) Current(ctx context.Context, sessionID string) (*table.Table, error) {
	st, err := s.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &st.Table, nil
}

// Info summarizes the session's current table with a preview of its first
// rows.
func (s *Service) Info(ctx context.Context, sessionID string) (*SessionInfo, error) {
	st, err := s.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		SessionID: sessionID,
		DatasetID: st.DatasetID,
		Filename:  st.Filename,
		Revision:  st.Revision,
		RowCount:  st.Table.Len(),
		UpdatedAt: st.UpdatedAt,
		Preview:   st.Table.Head(s.upload.PreviewRows),
	}, nil
}

// History returns the accepted transformations of the session's dataset,
// newest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]store.Transformation, error) {
	st, err := s.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = store.DefaultHistoryLimit
	}
	hist, err := s.recorder.History(ctx, st.DatasetID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return hist, nil
}
