package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tablefix/internal/logging"
	"github.com/JonMunkholm/tablefix/internal/session"
	"github.com/JonMunkholm/tablefix/internal/store"
	"github.com/JonMunkholm/tablefix/internal/table"
)

// Upload ingests a file into a session, replacing any table it held.
//
// The file is checked against the size limit, loaded by extension, recorded
// in the audit trail and stored as revision 0 of a new dataset.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, data []byte) (*UploadResult, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return nil, err
	}
	ctx = logging.ContextWithSession(ctx, sessionID)
	logger := logging.FromContext(ctx)

	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if limit := s.upload.MaxFileSize; limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(data), limit)
	}

	// The timeout covers the whole upload, including the audit insert and
	// the session write.
	if s.upload.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.upload.Timeout)
		defer cancel()
	}

	loaded, err := table.Load(data, filename)
	if err != nil {
		if errors.Is(err, table.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	datasetID := uuid.New()
	now := s.now()

	client := ClientFromContext(ctx)
	ds := &store.Dataset{
		ID:        datasetID,
		SessionID: sessionID,
		Filename:  loaded.Name,
		Ext:       loaded.Ext,
		Encoding:  loaded.Encoding,
		Delimiter: loaded.Delimiter,
		Sheet:     loaded.Sheet,
		Lossy:     loaded.Lossy,
		Columns:   loaded.Table.Columns,
		RowCount:  loaded.Table.Len(),
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: now,
	}
	// The audit trail never blocks an upload.
	if err := s.recorder.RecordDataset(ctx, ds); err != nil {
		logger.Error("record dataset failed", "dataset_id", datasetID, "error", err)
	}

	st := &session.State{
		Table:     loaded.Table,
		Filename:  loaded.Name,
		Ext:       loaded.Ext,
		Encoding:  loaded.Encoding,
		DatasetID: datasetID,
		Revision:  0,
		UpdatedAt: now,
	}
	if err := s.sessions.Put(ctx, sessionID, st); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	logger.Info("upload accepted",
		"file", loaded.Name,
		"format", loaded.Format,
		"encoding", loaded.Encoding,
		"delimiter", loaded.Delimiter,
		"columns", loaded.Table.Width(),
		"rows", loaded.Table.Len(),
		"dataset_id", datasetID,
	)

	return &UploadResult{
		SessionID: sessionID,
		DatasetID: datasetID,
		Filename:  loaded.Name,
		Ext:       loaded.Ext,
		Format:    loaded.Format,
		Encoding:  loaded.Encoding,
		Delimiter: loaded.Delimiter,
		Sheet:     loaded.Sheet,
		Lossy:     loaded.Lossy,
		Columns:   loaded.Table.Columns,
		RowCount:  loaded.Table.Len(),
		Preview:   loaded.Table.Head(s.upload.PreviewRows),
	}, nil
}
