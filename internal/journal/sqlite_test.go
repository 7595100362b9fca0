package journal_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"filerelay/internal/journal"
	"filerelay/internal/task"

	"github.com/stretchr/testify/require"
)

func newRecorder(t *testing.T) *journal.SQLiteRecorder {
	t.Helper()

	r, err := journal.NewSQLiteRecorder(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	return r
}

func registeredTask(id string) *task.FileTask {
	tk := task.New(id, "file_"+id+".pdf",
		task.Location{Bucket: "src", Key: "p1/f" + id}, "dest",
		map[string]string{"fileId": id})
	tk.MarkTransferred("2025/01/15/14/30/45/550e8400-e29b-41d4-a716-446655440000")
	tk.MarkRegistered("550e8400-e29b-41d4-a716-446655440000")
	return tk
}

func TestRecordOutcomeAndListFailed(t *testing.T) {
	r := newRecorder(t)

	failed := task.New("2", "file_2.pdf", task.Location{Bucket: "src", Key: "p1/f2"}, "dest", nil)
	failed.MarkFailed(task.StageTransfer, errors.New("connection refused"))

	require.NoError(t, r.RecordOutcome(journal.OutcomeFor("run-1", registeredTask("1"))))
	require.NoError(t, r.RecordOutcome(journal.OutcomeFor("run-1", failed)))

	outcomes, err := r.ListFailed("run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, "2", outcomes[0].TaskID)
	require.Equal(t, string(task.StageTransfer), outcomes[0].FailStage)
	require.Equal(t, "connection refused", outcomes[0].FailCause)
	require.Equal(t, task.StatusFailed, outcomes[0].Status)
}

func TestRecordOutcomeUpserts(t *testing.T) {
	r := newRecorder(t)

	tk := task.New("1", "file_1.pdf", task.Location{Bucket: "src", Key: "p1/f1"}, "dest", nil)
	tk.MarkFailed(task.StageMetadata, errors.New("api returned 503"))

	require.NoError(t, r.RecordOutcome(journal.OutcomeFor("run-1", tk)))
	require.NoError(t, r.RecordOutcome(journal.OutcomeFor("run-1", tk)))

	outcomes, err := r.ListFailed("run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
}

func TestListFailedScopedToRun(t *testing.T) {
	r := newRecorder(t)

	tk := task.New("1", "file_1.pdf", task.Location{Bucket: "src", Key: "p1/f1"}, "dest", nil)
	tk.MarkFailed(task.StageTransfer, errors.New("timeout"))
	require.NoError(t, r.RecordOutcome(journal.OutcomeFor("run-1", tk)))

	outcomes, err := r.ListFailed("run-2")
	require.NoError(t, err)
	require.Empty(t, outcomes)
}

func TestRecordSummary(t *testing.T) {
	r := newRecorder(t)

	require.NoError(t, r.RecordSummary(&journal.Summary{
		RunID:     "run-1",
		Expected:  3,
		Processed: 3,
		Succeeded: 2,
		Failed:    1,
		Missing:   0,
		Duration:  1500 * time.Millisecond,
	}))

	// Re-recording the same run replaces the row rather than erroring.
	require.NoError(t, r.RecordSummary(&journal.Summary{RunID: "run-1", Expected: 3, Processed: 3, Succeeded: 3}))
}

func TestRecorderClosedRejectsWrites(t *testing.T) {
	r := newRecorder(t)
	require.NoError(t, r.Close())

	err := r.RecordOutcome(journal.OutcomeFor("run-1", registeredTask("1")))
	require.Error(t, err)
}
