package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/botflowhq/botflow/pkg/schema"
)

// LibSQLArchive implements the Archive interface using libSQL (embedded
// SQLite fork).
type LibSQLArchive struct {
	db *sql.DB
}

// NewLibSQLArchive opens a libSQL database at the given path and returns an
// Archive. The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLArchive(dbPath string) (*LibSQLArchive, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLArchive{db: db}, nil
}

// Close closes the database.
func (a *LibSQLArchive) Close() error { return a.db.Close() }

// Migrate runs all pending database migrations.
func (a *LibSQLArchive) Migrate(ctx context.Context) error {
	return runMigrations(ctx, a.db)
}

// SaveRun upserts a terminal run record. Re-archiving the same run id
// overwrites the previous row.
func (a *LibSQLArchive) SaveRun(ctx context.Context, record *RunRecord) error {
	variables, err := nullableJSON(record.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	history, err := nullableJSON(record.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO runs (id, flow_id, status, variables, history, error, step_count, started_at, finished_at, cancelled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, variables=excluded.variables, history=excluded.history,
		   error=excluded.error, step_count=excluded.step_count,
		   finished_at=excluded.finished_at, cancelled_at=excluded.cancelled_at`,
		record.ID, record.FlowID, string(record.Status),
		variables, history, nullStr(record.Error), record.StepCount,
		timeOrNow(record.StartedAt), timeOrNow(record.FinishedAt), nullTime(record.CancelledAt),
	)
	return err
}

// GetRun loads an archived run by id.
func (a *LibSQLArchive) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	r := &RunRecord{}
	var status string
	var variables, history, errMsg sql.NullString
	var cancelledAt sql.NullTime
	err := a.db.QueryRowContext(ctx,
		`SELECT id, flow_id, status, variables, history, error, step_count, started_at, finished_at, cancelled_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.FlowID, &status, &variables, &history, &errMsg,
		&r.StepCount, &r.StartedAt, &r.FinishedAt, &cancelledAt)
	if err == sql.ErrNoRows {
		return nil, archiveNotFound("run", id)
	}
	if err != nil {
		return nil, err
	}
	r.Status = schema.ExecutionStatus(status)
	r.Error = errMsg.String
	if variables.Valid && variables.String != "" {
		_ = json.Unmarshal([]byte(variables.String), &r.Variables)
	}
	if history.Valid && history.String != "" {
		_ = json.Unmarshal([]byte(history.String), &r.History)
	}
	if cancelledAt.Valid {
		r.CancelledAt = &cancelledAt.Time
	}
	return r, nil
}

// ListRuns returns archived runs matching the filter, newest first.
func (a *LibSQLArchive) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	var where []string
	var args []any

	if filter.FlowID != "" {
		where = append(where, "flow_id = ?")
		args = append(args, filter.FlowID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "finished_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, flow_id, status, variables, history, error, step_count, started_at, finished_at, cancelled_at FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY finished_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		r := &RunRecord{}
		var status string
		var variables, history, errMsg sql.NullString
		var cancelledAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.FlowID, &status, &variables, &history, &errMsg,
			&r.StepCount, &r.StartedAt, &r.FinishedAt, &cancelledAt); err != nil {
			return nil, err
		}
		r.Status = schema.ExecutionStatus(status)
		r.Error = errMsg.String
		if variables.Valid && variables.String != "" {
			_ = json.Unmarshal([]byte(variables.String), &r.Variables)
		}
		if history.Valid && history.String != "" {
			_ = json.Unmarshal([]byte(history.String), &r.History)
		}
		if cancelledAt.Valid {
			r.CancelledAt = &cancelledAt.Time
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// PurgeRunsBefore deletes archived runs that finished before the cutoff and
// reports how many rows were removed.
func (a *LibSQLArchive) PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM runs WHERE finished_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Helpers ---

func archiveNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if len(x) == 0 {
			return nil, nil
		}
	case []schema.StepRecord:
		if len(x) == 0 {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
