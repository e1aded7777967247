package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/tablefix/internal/config"
)

// Postgres records the audit trail in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Connect opens a pool sized from cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewPostgres returns a Recorder backed by pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

const insertDataset = `
INSERT INTO uploaded_dataset
    (id, session_id, filename, extension, encoding, delimiter, sheet, lossy,
     columns, row_count, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// RecordDataset inserts d, filling ID and CreatedAt when unset.
func (p *Postgres) RecordDataset(ctx context.Context, d *Dataset) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = p.now()
	}

	_, err := p.pool.Exec(ctx, insertDataset,
		d.ID, d.SessionID, d.Filename, d.Ext,
		nullable(d.Encoding), nullable(d.Delimiter), nullable(d.Sheet), d.Lossy,
		d.Columns, d.RowCount,
		nullable(d.IPAddress), nullable(d.UserAgent), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

const insertTransformation = `
INSERT INTO transformation
    (id, dataset_id, session_id, instruction, intent, pattern, flags,
     replacement, format, target_columns, updated_cells, updated_rows, score,
     candidates, diagnostics, revision, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// RecordTransformation inserts t, filling ID and CreatedAt when unset.
func (p *Postgres) RecordTransformation(ctx context.Context, t *Transformation) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = p.now()
	}
	flags := t.Flags
	if flags == nil {
		flags = []string{}
	}

	_, err := p.pool.Exec(ctx, insertTransformation,
		t.ID, t.DatasetID, t.SessionID, t.Instruction, t.Intent, t.Pattern, flags,
		t.Replacement, t.Format, t.TargetColumns, t.UpdatedCells, t.UpdatedRows, t.Score,
		t.Candidates, t.Diagnostics, t.Revision, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transformation: %w", err)
	}
	return nil
}

const selectHistory = `
SELECT id, dataset_id, session_id, instruction, intent, pattern, flags,
       replacement, format, target_columns, updated_cells, updated_rows, score,
       candidates, diagnostics, revision, created_at
FROM transformation
WHERE dataset_id = $1
ORDER BY created_at DESC
LIMIT $2`

// History returns the most recent transformations of a dataset, newest first.
func (p *Postgres) History(ctx context.Context, datasetID uuid.UUID, limit int) ([]Transformation, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := p.pool.Query(ctx, selectHistory, datasetID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transformation, error) {
		var t Transformation
		err := row.Scan(
			&t.ID, &t.DatasetID, &t.SessionID, &t.Instruction, &t.Intent, &t.Pattern, &t.Flags,
			&t.Replacement, &t.Format, &t.TargetColumns, &t.UpdatedCells, &t.UpdatedRows, &t.Score,
			&t.Candidates, &t.Diagnostics, &t.Revision, &t.CreatedAt,
		)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return out, nil
}

// nullable maps "" to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
