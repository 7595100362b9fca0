// Package replicate implements the object replication collaborator: copying a
// source object into the target store under a freshly minted destination key.
package replicate

import (
	"context"
	"time"

	"filerelay/internal/task"
)

// Replicator copies a source object into the destination bucket and returns
// the destination key it was stored under. Implementations must be safe for
// concurrent use and idempotent under retry.
type Replicator interface {
	Replicate(ctx context.Context, src task.Location, destBucket string) (string, error)
}

// Config contains replication tuning knobs. Retries happen inside the
// replicator; the pipeline never re-enqueues a task.
type Config struct {
	MultipartThreshold int64
	PartSize           int64
	Retries            int
	RetryBackoff       time.Duration
}
