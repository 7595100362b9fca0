// Package journal persists per-task outcomes and run summaries for auditing.
// The journal is write-only during a run; it is never consulted to resume one.
package journal

import (
	"time"

	"filerelay/internal/task"
)

// Outcome is the terminal record of one task in one run.
type Outcome struct {
	RunID      string      `json:"run_id"`
	TaskID     string      `json:"task_id"`
	Name       string      `json:"name"`
	SrcBucket  string      `json:"src_bucket"`
	SrcKey     string      `json:"src_key"`
	DestBucket string      `json:"dest_bucket"`
	DestKey    string      `json:"dest_key"`
	UploadID   string      `json:"upload_id"`
	Status     task.Status `json:"status"`
	FailStage  string      `json:"fail_stage,omitempty"`
	FailCause  string      `json:"fail_cause,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// Summary is the terminal record of a whole run.
type Summary struct {
	RunID      string        `json:"run_id"`
	Expected   int           `json:"expected"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Missing    int           `json:"missing"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Recorder defines the interface for journal persistence.
type Recorder interface {
	RecordOutcome(outcome *Outcome) error
	RecordSummary(summary *Summary) error
	ListFailed(runID string) ([]*Outcome, error)

	Close() error
}

// OutcomeFor builds the journal record for a verified task.
func OutcomeFor(runID string, t *task.FileTask) *Outcome {
	o := &Outcome{
		RunID:      runID,
		TaskID:     t.ID,
		Name:       t.Name,
		SrcBucket:  t.Source.Bucket,
		SrcKey:     t.Source.Key,
		DestBucket: t.Dest.Bucket,
		DestKey:    t.Dest.Key,
		UploadID:   t.UploadID,
		Status:     t.Status,
	}
	if t.Failure != nil {
		o.FailStage = string(t.Failure.Stage)
		o.FailCause = t.Failure.Cause
	}
	return o
}
