package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder implements Recorder using SQLite
type SQLiteRecorder struct {
	db      *sql.DB
	closed  bool
	writeMu sync.Mutex
}

// NewSQLiteRecorder creates a new SQLite journal
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	// Configure SQLite for concurrent access
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	r := &SQLiteRecorder{db: db}
	if err := r.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return r, nil
}

func (r *SQLiteRecorder) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS outcomes (
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		name TEXT NOT NULL,
		src_bucket TEXT NOT NULL,
		src_key TEXT NOT NULL,
		dest_bucket TEXT NOT NULL,
		dest_key TEXT,
		upload_id TEXT,
		status TEXT NOT NULL,
		fail_stage TEXT,
		fail_cause TEXT,
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, task_id)
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		expected INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		missing INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(run_id, status);
	`

	_, err := r.db.Exec(query)
	return err
}

// RecordOutcome saves one task outcome
func (r *SQLiteRecorder) RecordOutcome(outcome *Outcome) error {
	if r.closed {
		return fmt.Errorf("journal is closed")
	}

	// Serialize writes to avoid SQLITE_BUSY from concurrent writers
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	outcome.RecordedAt = time.Now()

	return r.retryOnBusy(func() error {
		query := `
		INSERT INTO outcomes
		(run_id, task_id, name, src_bucket, src_key, dest_bucket, dest_key, upload_id, status, fail_stage, fail_cause, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, task_id) DO UPDATE SET
			dest_key = excluded.dest_key,
			upload_id = excluded.upload_id,
			status = excluded.status,
			fail_stage = excluded.fail_stage,
			fail_cause = excluded.fail_cause,
			recorded_at = excluded.recorded_at
		`

		_, err := r.db.Exec(query,
			outcome.RunID,
			outcome.TaskID,
			outcome.Name,
			outcome.SrcBucket,
			outcome.SrcKey,
			outcome.DestBucket,
			outcome.DestKey,
			outcome.UploadID,
			outcome.Status,
			outcome.FailStage,
			outcome.FailCause,
			outcome.RecordedAt,
		)
		return err
	})
}

// RecordSummary saves the terminal report of a run
func (r *SQLiteRecorder) RecordSummary(summary *Summary) error {
	if r.closed {
		return fmt.Errorf("journal is closed")
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	summary.FinishedAt = time.Now()

	return r.retryOnBusy(func() error {
		query := `
		INSERT INTO runs
		(run_id, expected, processed, succeeded, failed, missing, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			expected = excluded.expected,
			processed = excluded.processed,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			missing = excluded.missing,
			duration_ms = excluded.duration_ms,
			finished_at = excluded.finished_at
		`

		_, err := r.db.Exec(query,
			summary.RunID,
			summary.Expected,
			summary.Processed,
			summary.Succeeded,
			summary.Failed,
			summary.Missing,
			summary.Duration.Milliseconds(),
			summary.FinishedAt,
		)
		return err
	})
}

// ListFailed returns the failed outcomes of a run
func (r *SQLiteRecorder) ListFailed(runID string) ([]*Outcome, error) {
	query := `
	SELECT run_id, task_id, name, src_bucket, src_key, dest_bucket, dest_key, upload_id, status, fail_stage, fail_cause, recorded_at
	FROM outcomes WHERE run_id = ? AND status = 'failed'
	ORDER BY recorded_at ASC
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*Outcome

	for rows.Next() {
		var o Outcome
		var destKey, uploadID, failStage, failCause sql.NullString

		err := rows.Scan(
			&o.RunID,
			&o.TaskID,
			&o.Name,
			&o.SrcBucket,
			&o.SrcKey,
			&o.DestBucket,
			&destKey,
			&uploadID,
			&o.Status,
			&failStage,
			&failCause,
			&o.RecordedAt,
		)
		if err != nil {
			return nil, err
		}

		o.DestKey = destKey.String
		o.UploadID = uploadID.String
		o.FailStage = failStage.String
		o.FailCause = failCause.String

		outcomes = append(outcomes, &o)
	}

	return outcomes, rows.Err()
}

// retryOnBusy retries the operation if SQLite is busy
func (r *SQLiteRecorder) retryOnBusy(operation func() error) error {
	const maxRetries = 10
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if isSQLiteBusyError(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
			continue
		}

		return err
	}

	return nil
}

func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

// Close closes the database connection
func (r *SQLiteRecorder) Close() error {
	r.closed = true
	return r.db.Close()
}
