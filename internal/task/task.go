package task

// Status tracks a task's progress through the pipeline
type Status string

const (
	StatusReady       Status = "ready"
	StatusTransferred Status = "transferred"
	StatusRegistered  Status = "registered"
	StatusFailed      Status = "failed"
)

// Stage identifies a pipeline stage
type Stage string

const (
	StageDispatch Stage = "dispatch"
	StageTransfer Stage = "transfer"
	StageMetadata Stage = "metadata"
)

// Location addresses an object in an S3-compatible store
type Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Failure records where and why a task failed
type Failure struct {
	Stage Stage  `json:"stage"`
	Cause string `json:"cause"`
}

// FileTask is the unit of work moving through the pipeline. A task is held by
// exactly one queue or worker at any instant; ownership transfers with the
// channel handoff, so no field is ever written by two goroutines concurrently.
type FileTask struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Source Location          `json:"source"`
	Dest   Location          `json:"dest"`
	Meta   map[string]string `json:"meta"`

	// UploadID is assigned by metadata registration; empty before that.
	UploadID string   `json:"upload_id"`
	Status   Status   `json:"status"`
	Failure  *Failure `json:"failure,omitempty"`
}

// New creates a ready task. The destination key stays empty until the
// transfer stage assigns one.
func New(id, name string, src Location, destBucket string, meta map[string]string) *FileTask {
	return &FileTask{
		ID:     id,
		Name:   name,
		Source: src,
		Dest:   Location{Bucket: destBucket},
		Meta:   meta,
		Status: StatusReady,
	}
}

// MarkTransferred records the destination key assigned by replication.
func (t *FileTask) MarkTransferred(destKey string) {
	t.Dest.Key = destKey
	t.Status = StatusTransferred
}

// MarkRegistered records the upload id returned by metadata registration.
func (t *FileTask) MarkRegistered(uploadID string) {
	t.UploadID = uploadID
	t.Status = StatusRegistered
}

// MarkFailed routes the task onto the failure path.
func (t *FileTask) MarkFailed(stage Stage, err error) {
	t.Status = StatusFailed
	t.Failure = &Failure{Stage: stage, Cause: err.Error()}
}

// Failed reports whether the task ended on the failure path.
func (t *FileTask) Failed() bool {
	return t.Status == StatusFailed
}
