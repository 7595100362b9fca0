package app

import (
	"context"
	"fmt"
	"time"

	"filerelay/internal/config"
	"filerelay/internal/journal"
	"filerelay/internal/manifest"
	"filerelay/internal/metrics"
	"filerelay/internal/pipeline"
	"filerelay/internal/registry"
	"filerelay/internal/replicate"
	"filerelay/internal/storage"

	"go.uber.org/zap"
)

// Relay wires the storage clients, collaborators and pipeline together.
type Relay struct {
	cfg     *config.Config
	logger  *zap.Logger
	journal journal.Recorder
	metrics *metrics.Collector
	pipe    *pipeline.Pipeline
}

// New creates a relay instance from configuration.
func New(cfg *config.Config, logger *zap.Logger) (*Relay, error) {
	srcClient, err := storage.NewMinIOClient(storage.Config{
		Endpoint:  cfg.Source.Endpoint,
		AccessKey: cfg.Source.AccessKey,
		SecretKey: cfg.Source.SecretKey,
		Secure:    cfg.Source.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create source client: %w", err)
	}

	dstClient, err := storage.NewMinIOClient(storage.Config{
		Endpoint:  cfg.Target.Endpoint,
		AccessKey: cfg.Target.AccessKey,
		SecretKey: cfg.Target.SecretKey,
		Secure:    cfg.Target.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create destination client: %w", err)
	}

	replicator := replicate.NewS3Replicator(srcClient, dstClient, replicate.Config{
		MultipartThreshold: cfg.Pipeline.MultipartThreshold,
		PartSize:           cfg.Pipeline.PartSize,
		Retries:            cfg.Pipeline.Retries,
		RetryBackoff:       time.Duration(cfg.Pipeline.RetryBackoffMs) * time.Millisecond,
	}, logger)

	registrar := registry.NewClient(registry.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		Retries: cfg.API.Retries,
		Backoff: time.Duration(cfg.API.BackoffMs) * time.Millisecond,
	}, nil)

	var recorder journal.Recorder
	if cfg.Journal != "" {
		recorder, err = journal.NewSQLiteRecorder(cfg.Journal)
		if err != nil {
			return nil, fmt.Errorf("failed to create run journal: %w", err)
		}
	}

	metricsCollector := metrics.New()

	pipe := pipeline.New(pipeline.Config{
		TransferWorkers: cfg.Pipeline.TransferWorkers,
		MetadataWorkers: cfg.Pipeline.MetadataWorkers,
		QueueDepth:      cfg.Pipeline.QueueDepth,
		DestBucket:      cfg.Pipeline.Bucket,
	}, replicator, registrar, metricsCollector, recorder, logger)

	return &Relay{
		cfg:     cfg,
		logger:  logger,
		journal: recorder,
		metrics: metricsCollector,
		pipe:    pipe,
	}, nil
}

// Run loads the manifest and executes the pipeline over it.
func (r *Relay) Run(ctx context.Context) (*pipeline.Report, error) {
	if r.cfg.Metrics.Enabled {
		go func() {
			if err := r.metrics.StartServer(r.cfg.Metrics.Addr); err != nil {
				r.logger.Error("failed to start metrics server", zap.Error(err))
			}
		}()
	}

	m, err := manifest.Load(r.cfg.Manifest)
	if err != nil {
		return nil, err
	}

	r.logger.Info("manifest loaded",
		zap.String("path", r.cfg.Manifest),
		zap.Int("files", len(m.Files)),
		zap.String("dest_bucket", r.cfg.Pipeline.Bucket),
	)

	return r.pipe.Run(ctx, m.Tasks(r.cfg.Pipeline.Bucket))
}

// Close cleans up resources
func (r *Relay) Close() error {
	if r.journal != nil {
		return r.journal.Close()
	}
	return nil
}
