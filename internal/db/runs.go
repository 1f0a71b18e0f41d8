package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const runColumns = `id, started_at, finished_at, sample_count, skipped,
	       trees, stems, calculations, heights, archive_path, upload_key`

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var r Run
	err := scanner.Scan(
		&r.ID, &r.StartedAt, &r.FinishedAt, &r.SampleCount, &r.Skipped,
		&r.Trees, &r.Stems, &r.Calculations, &r.Heights, &r.ArchivePath, &r.UploadKey,
	)
	return r, err
}

// RecordRun inserts a completed download into the run history. An empty ID
// is filled with a fresh UUID.
func (d *DB) RecordRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO harvest_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.StartedAt, r.FinishedAt, r.SampleCount, r.Skipped,
		r.Trees, r.Stems, r.Calculations, r.Heights, r.ArchivePath, r.UploadKey)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM harvest_runs ORDER BY started_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID, or nil if not found
func (d *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM harvest_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
