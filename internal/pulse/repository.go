package pulse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists line records: the physical binding plus the last
// applied control-attribute settings, restored when the same line name
// is bound again.
//
// This abstraction allows different implementations (SQLite, mock) and
// enables unit testing without database dependencies.
type Repository interface {
	// Get retrieves a record by line name.
	// Returns ErrLineNotFound if no record exists.
	Get(ctx context.Context, name string) (*Record, error)

	// Upsert inserts or replaces a record.
	Upsert(ctx context.Context, rec *Record) error

	// List retrieves all records, ordered by name.
	List(ctx context.Context) ([]Record, error)

	// Delete removes a record by name.
	// Returns ErrLineNotFound if no record exists.
	Delete(ctx context.Context, name string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// lines table migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves a record by line name.
func (r *SQLiteRepository) Get(ctx context.Context, name string) (*Record, error) {
	query := `
		SELECT name, chip, line_name, line_offset, active_low, source,
			enabled, freq, on_cycles, off_cycles, updated_at
		FROM lines
		WHERE name = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("querying line by name: %w", err)
	}
	return rec, nil
}

// Upsert inserts or replaces a record.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO lines (name, chip, line_name, line_offset, active_low, source,
			enabled, freq, on_cycles, off_cycles, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			chip = excluded.chip,
			line_name = excluded.line_name,
			line_offset = excluded.line_offset,
			active_low = excluded.active_low,
			source = excluded.source,
			enabled = excluded.enabled,
			freq = excluded.freq,
			on_cycles = excluded.on_cycles,
			off_cycles = excluded.off_cycles,
			updated_at = excluded.updated_at`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, query,
		rec.Name,
		rec.Binding.Chip,
		rec.Binding.LineName,
		rec.Binding.Offset,
		boolToInt(rec.Binding.ActiveLow),
		rec.Binding.Source,
		boolToInt(rec.Settings.Enabled),
		rec.Settings.Freq,
		rec.Settings.OnCycles,
		rec.Settings.OffCycles,
		now,
	)
	if err != nil {
		return fmt.Errorf("upserting line: %w", err)
	}
	return nil
}

// List retrieves all records, ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT name, chip, line_name, line_offset, active_low, source,
			enabled, freq, on_cycles, off_cycles, updated_at
		FROM lines
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning line row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lines: %w", err)
	}
	return records, nil
}

// Delete removes a record by name.
func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lines WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting line: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrLineNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans one lines row.
func scanRecord(s scanner) (*Record, error) {
	var (
		rec       Record
		activeLow int
		enabled   int
		updatedAt string
	)
	if err := s.Scan(
		&rec.Name,
		&rec.Binding.Chip,
		&rec.Binding.LineName,
		&rec.Binding.Offset,
		&activeLow,
		&rec.Binding.Source,
		&enabled,
		&rec.Settings.Freq,
		&rec.Settings.OnCycles,
		&rec.Settings.OffCycles,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	rec.Binding.ActiveLow = activeLow != 0
	rec.Settings.Enabled = enabled != 0
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
