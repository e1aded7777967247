package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tablefix/internal/planner"
	"github.com/JonMunkholm/tablefix/internal/table"
	"github.com/JonMunkholm/tablefix/internal/transform"
)

// UploadResult describes a file accepted into a session.
type UploadResult struct {
	SessionID string       `json:"sessionId"`
	DatasetID uuid.UUID    `json:"datasetId"`
	Filename  string       `json:"filename"`
	Ext       string       `json:"extension"`
	Format    table.Format `json:"format"`
	Encoding  string       `json:"encoding,omitempty"`
	Delimiter string       `json:"delimiter,omitempty"`
	Sheet     string       `json:"sheet,omitempty"`
	Lossy     bool         `json:"lossy,omitempty"`
	Columns   []string     `json:"columns"`
	RowCount  int          `json:"rowCount"`
	Preview   table.Table  `json:"preview"`
}

// TransformRequest asks for one transformation of a session's table.
//
// With Candidates set the planner is bypassed. Candidates without an intent
// default to replace.
type TransformRequest struct {
	Instruction string                    `json:"natural_language"`
	Columns     []string                  `json:"columns"`
	Candidates  []transform.CandidatePlan `json:"candidates,omitempty"`
	Replacement *string                   `json:"replacement,omitempty"`

	ApplyPhoneNormalization bool `json:"apply_phone_normalization"`
	ApplyDateNormalization  bool `json:"apply_date_normalization"`
}

// TransformResult is the outcome of an accepted transformation.
type TransformResult struct {
	SessionID string                  `json:"sessionId"`
	Plan      *planner.Plan           `json:"plan,omitempty"`
	Selected  transform.CandidatePlan `json:"selected"`
	Index     int                     `json:"index"`
	Stats     transform.ChangeStats   `json:"stats"`
	Score     float64                 `json:"score"`

	// Normalized counts the changes made by built-in normalizers on top of
	// the selected candidate. Nil when none were requested.
	Normalized *transform.ChangeStats `json:"normalized,omitempty"`

	Diagnostics []transform.Diagnostic `json:"diagnostics"`
	Skipped     []transform.Skip       `json:"skipped"`
	Revision    int                    `json:"revision"`
	RowCount    int                    `json:"rowCount"`
	Preview     table.Table            `json:"preview"`
}

// SessionInfo summarizes a session's current table.
type SessionInfo struct {
	SessionID string      `json:"sessionId"`
	DatasetID uuid.UUID   `json:"datasetId"`
	Filename  string      `json:"filename"`
	Revision  int         `json:"revision"`
	RowCount  int         `json:"rowCount"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Preview   table.Table `json:"preview"`
}
