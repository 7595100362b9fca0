package pipeline

import (
	"context"
	"sync"
	"time"

	"filerelay/internal/metrics"
	"filerelay/internal/registry"
	"filerelay/internal/task"

	"go.uber.org/zap"
)

// metadataPool registers transferred objects with the remote file API. The
// returned upload id echoes the UUID segment of the destination key, so a
// registered task carries the same identity in the store and the API.
type metadataPool struct {
	size      int
	registrar registry.Registrar
	metrics   *metrics.Collector
	logger    *zap.Logger
}

func (p *metadataPool) start(ctx context.Context, in <-chan *task.FileTask, out chan<- *task.FileTask, wg *sync.WaitGroup) {
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go p.worker(ctx, i, in, out, wg)
	}
}

func (p *metadataPool) worker(ctx context.Context, id int, in <-chan *task.FileTask, out chan<- *task.FileTask, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Info("metadata worker started")

	for t := range in {
		p.metrics.SetQueueDepth("metadata", len(in))

		if err := ctx.Err(); err != nil {
			p.fail(t, err)
			out <- t
			continue
		}

		start := time.Now()
		uploadID, err := p.registrar.Register(ctx, t.Meta, t.Dest)
		if err != nil {
			logger.Warn("registration failed",
				zap.String("task_id", t.ID),
				zap.String("dest_key", t.Dest.Key),
				zap.Error(err),
			)
			p.fail(t, err)
			out <- t
			continue
		}

		t.MarkRegistered(uploadID)
		p.metrics.IncSuccess(metrics.StageMetadata)
		p.metrics.ObserveStageDuration(metrics.StageMetadata, time.Since(start))
		logger.Debug("metadata registered",
			zap.String("task_id", t.ID),
			zap.String("upload_id", uploadID),
			zap.Duration("duration", time.Since(start)),
		)

		out <- t
	}

	logger.Info("metadata worker finished")
}

func (p *metadataPool) fail(t *task.FileTask, err error) {
	t.MarkFailed(task.StageMetadata, err)
	p.metrics.IncFailed(metrics.StageMetadata)
}
