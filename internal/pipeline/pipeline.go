// Package pipeline implements the staged processing pipeline: dispatch,
// object transfer, metadata registration, and verification, connected by
// bounded queues with a join-then-close shutdown protocol.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"filerelay/internal/journal"
	"filerelay/internal/metrics"
	"filerelay/internal/registry"
	"filerelay/internal/replicate"
	"filerelay/internal/task"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrShutdownProtocol reports a broken termination contract: the verifier
// observed more tasks than were dispatched, which can only happen if a queue
// handoff duplicated a task.
var ErrShutdownProtocol = errors.New("pipeline: shutdown protocol violation")

// Config contains pipeline sizing. Metadata registration is materially slower
// than object transfer, so its pool should be the larger of the two.
type Config struct {
	TransferWorkers int
	MetadataWorkers int
	// QueueDepth bounds each stage queue. Zero picks twice the larger pool
	// size, which keeps upstream stages busy without buffering a whole run.
	QueueDepth int
	DestBucket string
}

// Pipeline moves a batch of file tasks through transfer, registration and
// verification. The stage queues live for one Run call; nothing is shared
// across runs.
type Pipeline struct {
	config     Config
	replicator replicate.Replicator
	registrar  registry.Registrar
	metrics    *metrics.Collector
	recorder   journal.Recorder
	logger     *zap.Logger
}

// New creates a pipeline. recorder may be nil to disable the run journal.
func New(
	config Config,
	replicator replicate.Replicator,
	registrar registry.Registrar,
	metricsCollector *metrics.Collector,
	recorder journal.Recorder,
	logger *zap.Logger,
) *Pipeline {
	if config.TransferWorkers <= 0 {
		config.TransferWorkers = 1
	}
	if config.MetadataWorkers <= 0 {
		config.MetadataWorkers = 1
	}
	if config.QueueDepth <= 0 {
		config.QueueDepth = 2 * max(config.TransferWorkers, config.MetadataWorkers)
	}

	return &Pipeline{
		config:     config,
		replicator: replicator,
		registrar:  registrar,
		metrics:    metricsCollector,
		recorder:   recorder,
		logger:     logger,
	}
}

// Run pushes every task through the pipeline and blocks until the verifier
// has accounted for all of them. Per-task failures are carried in the report,
// not returned as errors; only a broken shutdown contract is fatal.
//
// Shutdown ordering is load-bearing: a stage's input queue is closed only
// after every producer into it has been joined. Closing earlier would let a
// worker exit on the close while a sibling producer still holds a task in
// flight, stranding that task against a shrunken consumer set.
func (p *Pipeline) Run(ctx context.Context, tasks []*task.FileTask) (*Report, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	start := time.Now()

	logger.Info("pipeline starting",
		zap.Int("tasks", len(tasks)),
		zap.Int("transfer_workers", p.config.TransferWorkers),
		zap.Int("metadata_workers", p.config.MetadataWorkers),
		zap.Int("queue_depth", p.config.QueueDepth),
	)

	transferQ := make(chan *task.FileTask, p.config.QueueDepth)
	metadataQ := make(chan *task.FileTask, p.config.QueueDepth)
	verifyQ := make(chan *task.FileTask, p.config.QueueDepth)

	reports := make(chan *Report, 1)
	v := &verifier{
		runID:    runID,
		expected: len(tasks),
		recorder: p.recorder,
		metrics:  p.metrics,
		logger:   logger.With(zap.String("stage", "verify")),
	}
	go v.run(verifyQ, reports)

	var transferWG, metadataWG sync.WaitGroup

	mp := &metadataPool{
		size:      p.config.MetadataWorkers,
		registrar: p.registrar,
		metrics:   p.metrics,
		logger:    logger.With(zap.String("stage", "metadata")),
	}
	mp.start(ctx, metadataQ, verifyQ, &metadataWG)

	tp := &transferPool{
		size:       p.config.TransferWorkers,
		destBucket: p.config.DestBucket,
		replicator: p.replicator,
		metrics:    p.metrics,
		logger:     logger.With(zap.String("stage", "transfer")),
	}
	tp.start(ctx, transferQ, metadataQ, verifyQ, &transferWG)

	d := &dispatcher{
		metrics: p.metrics,
		logger:  logger.With(zap.String("stage", "dispatch")),
	}
	d.run(ctx, tasks, transferQ, verifyQ)

	// Join-then-close sequence. Each close is the stage's shutdown broadcast;
	// every worker observes it exactly once when its range loop ends.
	close(transferQ)
	transferWG.Wait()
	close(metadataQ)
	metadataWG.Wait()
	close(verifyQ)

	report := <-reports
	report.RunID = runID
	report.Duration = time.Since(start)

	p.recordSummary(report, logger)

	if report.Processed > report.Expected {
		return report, fmt.Errorf("%w: verifier observed %d tasks, expected %d",
			ErrShutdownProtocol, report.Processed, report.Expected)
	}

	logger.Info("pipeline finished",
		zap.Int("processed", report.Processed),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("missing", report.Missing),
		zap.Duration("duration", report.Duration),
	)

	return report, nil
}

func (p *Pipeline) recordSummary(report *Report, logger *zap.Logger) {
	if p.recorder == nil {
		return
	}

	err := p.recorder.RecordSummary(&journal.Summary{
		RunID:     report.RunID,
		Expected:  report.Expected,
		Processed: report.Processed,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Missing:   report.Missing,
		Duration:  report.Duration,
	})
	if err != nil {
		logger.Error("failed to record run summary", zap.Error(err))
	}
}
