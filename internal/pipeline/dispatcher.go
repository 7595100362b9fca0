package pipeline

import (
	"context"

	"filerelay/internal/metrics"
	"filerelay/internal/task"

	"go.uber.org/zap"
)

// dispatcher is the single producer feeding the transfer queue. It enqueues
// every task exactly once and emits no shutdown signal itself; the pipeline
// closes the queue after run returns.
type dispatcher struct {
	metrics *metrics.Collector
	logger  *zap.Logger
}

func (d *dispatcher) run(ctx context.Context, tasks []*task.FileTask, transferQ, verifyQ chan<- *task.FileTask) {
	for _, t := range tasks {
		select {
		case transferQ <- t:
			d.metrics.SetQueueDepth("transfer", len(transferQ))
			d.logger.Debug("dispatched task",
				zap.String("task_id", t.ID),
				zap.String("name", t.Name),
			)
		case <-ctx.Done():
			// A task that cannot be handed to the transfer queue anymore is
			// routed straight to the verifier so its accounting stays complete.
			t.MarkFailed(task.StageDispatch, ctx.Err())
			d.metrics.IncFailed(metrics.StageDispatch)
			verifyQ <- t
		}
	}

	d.logger.Info("dispatch complete", zap.Int("tasks", len(tasks)))
}
