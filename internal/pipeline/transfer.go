package pipeline

import (
	"context"
	"sync"
	"time"

	"filerelay/internal/metrics"
	"filerelay/internal/replicate"
	"filerelay/internal/task"

	"go.uber.org/zap"
)

// transferPool replicates source objects into the destination bucket. Tasks
// that replicate successfully move on to the metadata queue; failures go
// straight to the verify queue.
type transferPool struct {
	size       int
	destBucket string
	replicator replicate.Replicator
	metrics    *metrics.Collector
	logger     *zap.Logger
}

func (p *transferPool) start(ctx context.Context, in <-chan *task.FileTask, out, failed chan<- *task.FileTask, wg *sync.WaitGroup) {
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go p.worker(ctx, i, in, out, failed, wg)
	}
}

func (p *transferPool) worker(ctx context.Context, id int, in <-chan *task.FileTask, out, failed chan<- *task.FileTask, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Info("transfer worker started")

	for t := range in {
		p.metrics.SetQueueDepth("transfer", len(in))

		// Keep draining after cancellation instead of returning: an early
		// exit would strand queued tasks and block the bounded upstream
		// enqueue. Drained tasks take the failure path.
		if err := ctx.Err(); err != nil {
			p.fail(t, err, failed)
			continue
		}

		start := time.Now()
		destKey, err := p.replicator.Replicate(ctx, t.Source, p.destBucket)
		if err != nil {
			logger.Warn("replication failed",
				zap.String("task_id", t.ID),
				zap.String("src_key", t.Source.Key),
				zap.Error(err),
			)
			p.fail(t, err, failed)
			continue
		}

		t.MarkTransferred(destKey)
		p.metrics.IncSuccess(metrics.StageTransfer)
		p.metrics.ObserveStageDuration(metrics.StageTransfer, time.Since(start))
		logger.Debug("object replicated",
			zap.String("task_id", t.ID),
			zap.String("dest_key", destKey),
			zap.Duration("duration", time.Since(start)),
		)

		out <- t
	}

	logger.Info("transfer worker finished")
}

func (p *transferPool) fail(t *task.FileTask, err error, failed chan<- *task.FileTask) {
	t.MarkFailed(task.StageTransfer, err)
	p.metrics.IncFailed(metrics.StageTransfer)
	failed <- t
}
