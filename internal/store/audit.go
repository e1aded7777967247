// Package store records uploads and accepted transformations.
//
// The audit trail is optional. With no database configured the service uses
// NopRecorder and keeps working; with one, every upload becomes an
// uploaded_dataset row and every accepted transformation a transformation row
// that references it.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is the number of transformations History returns when
// no limit is given.
const DefaultHistoryLimit = 50

// Dataset describes one ingested file.
type Dataset struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"sessionId"`
	Filename  string    `json:"filename"`
	Ext       string    `json:"extension"`
	Encoding  string    `json:"encoding,omitempty"`
	Delimiter string    `json:"delimiter,omitempty"`
	Sheet     string    `json:"sheet,omitempty"`
	Lossy     bool      `json:"lossy,omitempty"`
	Columns   []string  `json:"columns"`
	RowCount  int       `json:"rowCount"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Transformation describes one accepted candidate.
type Transformation struct {
	ID            uuid.UUID       `json:"id"`
	DatasetID     uuid.UUID       `json:"datasetId"`
	SessionID     string          `json:"sessionId"`
	Instruction   string          `json:"instruction"`
	Intent        string          `json:"intent"`
	Pattern       string          `json:"pattern"`
	Flags         []string        `json:"flags"`
	Replacement   *string         `json:"replacement,omitempty"`
	Format        *string         `json:"format,omitempty"`
	TargetColumns []string        `json:"targetColumns"`
	UpdatedCells  int             `json:"updatedCells"`
	UpdatedRows   int             `json:"updatedRows"`
	Score         float64         `json:"score"`
	Candidates    int             `json:"candidates"`
	Diagnostics   json.RawMessage `json:"diagnostics,omitempty"`
	Revision      int             `json:"revision"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Recorder persists the audit trail.
type Recorder interface {
	RecordDataset(ctx context.Context, d *Dataset) error
	RecordTransformation(ctx context.Context, t *Transformation) error
	History(ctx context.Context, datasetID uuid.UUID, limit int) ([]Transformation, error)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordDataset(context.Context, *Dataset) error { return nil }

func (NopRecorder) RecordTransformation(context.Context, *Transformation) error { return nil }

func (NopRecorder) History(context.Context, uuid.UUID, int) ([]Transformation, error) {
	return []Transformation{}, nil
}
