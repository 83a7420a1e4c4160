package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/enach-client/internal/worker/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS work_records (
	work_key         TEXT PRIMARY KEY,
	interval_ns      BIGINT NOT NULL,
	requires_network INTEGER NOT NULL DEFAULT 0,
	payload          TEXT NOT NULL,
	state            TEXT NOT NULL,
	attempts         INTEGER NOT NULL DEFAULT 0,
	last_error       TEXT NOT NULL DEFAULT '',
	created_at       BIGINT NOT NULL,
	updated_at       BIGINT NOT NULL
)`

// Storage persists scheduled work so it survives a restart. Queries are
// written with ? placeholders and rebound for the connected driver.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// row mirrors the work_records table
type row struct {
	Key             string `db:"work_key"`
	IntervalNS      int64  `db:"interval_ns"`
	RequiresNetwork int    `db:"requires_network"`
	Payload         string `db:"payload"`
	State           string `db:"state"`
	Attempts        int    `db:"attempts"`
	LastError       string `db:"last_error"`
	CreatedAt       int64  `db:"created_at"`
	UpdatedAt       int64  `db:"updated_at"`
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the work_records table if needed
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate work records: %w", err)
	}
	return nil
}

// Upsert inserts the record or replaces the one with the same key.
// CreatedAt of an existing record is kept.
func (s *Storage) Upsert(ctx context.Context, rec domain.WorkRecord) error {
	r, err := toRow(rec)
	if err != nil {
		return err
	}

	query := s.db.Rebind(`
		INSERT INTO work_records
			(work_key, interval_ns, requires_network, payload, state, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (work_key) DO UPDATE SET
			interval_ns = excluded.interval_ns,
			requires_network = excluded.requires_network,
			payload = excluded.payload,
			state = excluded.state,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`)

	_, err = s.db.ExecContext(ctx, query,
		r.Key, r.IntervalNS, r.RequiresNetwork, r.Payload, r.State, r.Attempts, r.LastError, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert work record: %w", err)
	}

	s.logger.Debug("Work record saved",
		slog.String("key", rec.Key),
		slog.String("state", string(rec.State)),
	)
	return nil
}

// Get retrieves a record by key
func (s *Storage) Get(ctx context.Context, key string) (*domain.WorkRecord, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT * FROM work_records WHERE work_key = ?`), key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get work record: %w", err)
	}

	rec, err := r.toRecord()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateState records the state transition of a key
func (s *Storage) UpdateState(ctx context.Context, key string, state domain.State, attempts int, lastError string) error {
	query := s.db.Rebind(`
		UPDATE work_records
		SET state = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE work_key = ?
	`)

	result, err := s.db.ExecContext(ctx, query, string(state), attempts, lastError, time.Now().UnixMilli(), key)
	if err != nil {
		return fmt.Errorf("failed to update work state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		s.logger.Warn("Work state update - no rows affected (record may have been cancelled)",
			slog.String("key", key),
		)
	}
	return nil
}

// Delete removes a record. Deleting a missing key is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM work_records WHERE work_key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete work record: %w", err)
	}
	return nil
}

// ListActive returns every record that has not reached a terminal state,
// oldest first
func (s *Storage) ListActive(ctx context.Context) ([]domain.WorkRecord, error) {
	query := s.db.Rebind(`
		SELECT * FROM work_records
		WHERE state NOT IN (?, ?, ?)
		ORDER BY created_at, work_key
	`)

	var rows []row
	err := s.db.SelectContext(ctx, &rows, query,
		string(domain.StateSucceeded), string(domain.StateFailed), string(domain.StateCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list work records: %w", err)
	}

	records := make([]domain.WorkRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toRecord()
		if err != nil {
			s.logger.Warn("Skipping unreadable work record",
				slog.String("key", r.Key),
				slog.Any("error", err),
			)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRow(rec domain.WorkRecord) (row, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return row{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	created, updated := rec.CreatedAt, rec.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}

	r := row{
		Key:        rec.Key,
		IntervalNS: int64(rec.Interval),
		Payload:    string(payload),
		State:      string(rec.State),
		Attempts:   rec.Attempts,
		LastError:  rec.LastError,
		CreatedAt:  created.UnixMilli(),
		UpdatedAt:  updated.UnixMilli(),
	}
	if rec.Constraints.RequiresNetwork {
		r.RequiresNetwork = 1
	}
	return r, nil
}

func (r row) toRecord() (domain.WorkRecord, error) {
	var payload map[string]string
	if err := json.Unmarshal([]byte(r.Payload), &payload); err != nil {
		return domain.WorkRecord{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	return domain.WorkRecord{
		Key:         r.Key,
		Interval:    time.Duration(r.IntervalNS),
		Constraints: domain.Constraints{RequiresNetwork: r.RequiresNetwork != 0},
		Payload:     payload,
		State:       domain.State(r.State),
		Attempts:    r.Attempts,
		LastError:   r.LastError,
		CreatedAt:   time.UnixMilli(r.CreatedAt),
		UpdatedAt:   time.UnixMilli(r.UpdatedAt),
	}, nil
}
