package pipeline

import (
	"time"

	"filerelay/internal/journal"
	"filerelay/internal/metrics"
	"filerelay/internal/task"

	"go.uber.org/zap"
)

// Report is the terminal output of a pipeline run: the only component-level
// view across all tasks rather than per-task work.
type Report struct {
	RunID     string
	Expected  int
	Processed int
	Succeeded int
	Failed    int
	// Missing is Expected minus Processed. Anything other than zero means a
	// task was lost (positive) or duplicated (negative) on its way through.
	Missing  int
	Duration time.Duration
	Failures []TaskFailure
}

// TaskFailure describes one task that ended on the failure path.
type TaskFailure struct {
	TaskID string
	Name   string
	Stage  task.Stage
	Cause  string
}

// verifier is the single consumer of the verify queue. It drains until the
// queue closes, then emits the run report.
type verifier struct {
	runID    string
	expected int
	recorder journal.Recorder
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func (v *verifier) run(in <-chan *task.FileTask, out chan<- *Report) {
	report := &Report{Expected: v.expected}

	for t := range in {
		report.Processed++

		if t.Status == task.StatusRegistered {
			report.Succeeded++
			v.metrics.IncSuccess(metrics.StageVerify)
		} else {
			report.Failed++
			v.metrics.IncFailed(metrics.StageVerify)

			failure := TaskFailure{TaskID: t.ID, Name: t.Name}
			if t.Failure != nil {
				failure.Stage = t.Failure.Stage
				failure.Cause = t.Failure.Cause
			}
			report.Failures = append(report.Failures, failure)
		}

		v.record(t)
		v.logger.Debug("verified task",
			zap.String("task_id", t.ID),
			zap.String("status", string(t.Status)),
		)
	}

	report.Missing = report.Expected - report.Processed
	out <- report
}

func (v *verifier) record(t *task.FileTask) {
	if v.recorder == nil {
		return
	}

	if err := v.recorder.RecordOutcome(journal.OutcomeFor(v.runID, t)); err != nil {
		v.logger.Error("failed to record task outcome",
			zap.String("task_id", t.ID),
			zap.Error(err),
		)
	}
}
