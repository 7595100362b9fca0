package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"filerelay/internal/app"
	"filerelay/internal/config"
	"filerelay/internal/logger"
	"filerelay/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "filerelay",
	Short: "Replicate files between S3-compatible stores and register their metadata",
	Long: `A concurrent pipeline that copies a batch of objects from a source store to a
target store, registers each object's metadata with the file API, and verifies
that every record completed.`,
	RunE: runRelay,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")

	// Source flags
	rootCmd.Flags().String("src-endpoint", "", "Source store endpoint")
	rootCmd.Flags().String("src-access-key", "", "Source store access key")
	rootCmd.Flags().String("src-secret-key", "", "Source store secret key")
	rootCmd.Flags().Bool("src-secure", false, "Use HTTPS for source")

	// Destination flags
	rootCmd.Flags().String("dst-endpoint", "", "Target store endpoint")
	rootCmd.Flags().String("dst-access-key", "", "Target store access key")
	rootCmd.Flags().String("dst-secret-key", "", "Target store secret key")
	rootCmd.Flags().Bool("dst-secure", true, "Use HTTPS for destination")

	// API flags
	rootCmd.Flags().String("api-url", "", "Metadata registration API base URL")
	rootCmd.Flags().String("api-token", "", "Metadata registration API token")
	rootCmd.Flags().Int("api-timeout", 30, "API request timeout in seconds")

	// Pipeline flags
	rootCmd.Flags().String("bucket", "", "Destination bucket (required)")
	rootCmd.Flags().String("manifest", "", "Manifest file of records to process (required)")
	rootCmd.Flags().Int("transfer-workers", 4, "Number of concurrent transfer workers")
	rootCmd.Flags().Int("metadata-workers", 8, "Number of concurrent metadata workers")
	rootCmd.Flags().Int("queue-depth", 0, "Stage queue capacity (0 = derived from pool sizes)")
	rootCmd.Flags().Int64("multipart-threshold", 104857600, "Multipart upload threshold in bytes")
	rootCmd.Flags().Int64("part-size", 67108864, "Multipart part size in bytes")
	rootCmd.Flags().Int("retries", 5, "Maximum replication retry attempts")
	rootCmd.Flags().Int("retry-backoff-ms", 500, "Initial retry backoff in milliseconds")
	rootCmd.Flags().String("journal", "", "Run journal database file (empty disables journaling)")
	rootCmd.Flags().Bool("metrics", false, "Expose Prometheus metrics")
	rootCmd.Flags().String("metrics-addr", ":8080", "Metrics listen address")
	rootCmd.Flags().String("log-level", "info", "Log level (debug/info/warn/error)")
}

func runRelay(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	relay, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received shutdown signal, gracefully stopping...")
		cancel()
	}()

	rep, err := relay.Run(ctx)

	if closeErr := relay.Close(); closeErr != nil {
		log.Error("Error closing relay", zap.Error(closeErr))
	}

	if rep != nil {
		report.Render(cmd.OutOrStdout(), rep)
	}
	if err != nil {
		return err
	}

	if rep.Failed > 0 || rep.Missing != 0 {
		return fmt.Errorf("%d of %d tasks did not complete", rep.Failed+rep.Missing, rep.Expected)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
