package replicate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"filerelay/internal/objectkey"
	"filerelay/internal/storage"
	"filerelay/internal/task"

	"go.uber.org/zap"
)

// S3Replicator streams objects from a source store to a destination store.
type S3Replicator struct {
	src    storage.Client
	dst    storage.Client
	config Config
	logger *zap.Logger
}

// NewS3Replicator creates a replicator over the given source and destination clients.
func NewS3Replicator(src, dst storage.Client, config Config, logger *zap.Logger) *S3Replicator {
	return &S3Replicator{
		src:    src,
		dst:    dst,
		config: config,
		logger: logger,
	}
}

// Replicate copies the source object to the destination bucket under a new
// timestamped key and returns that key. The key is minted once per call and
// reused across internal retries, keeping the retried put idempotent.
func (r *S3Replicator) Replicate(ctx context.Context, src task.Location, destBucket string) (string, error) {
	info, err := r.src.StatObject(ctx, src.Bucket, src.Key)
	if err != nil {
		return "", fmt.Errorf("failed to stat source object %s/%s: %w", src.Bucket, src.Key, err)
	}

	destKey := objectkey.New(time.Now())

	var lastErr error
	for attempt := 1; attempt <= r.config.Retries; attempt++ {
		err := r.copy(ctx, src, destBucket, destKey, info)
		if err == nil {
			return destKey, nil
		}

		lastErr = err
		r.logger.Warn("replication attempt failed",
			zap.String("src_key", src.Key),
			zap.String("dest_key", destKey),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if !isRetriableError(err) {
			break
		}

		if attempt < r.config.Retries {
			select {
			case <-time.After(r.backoff(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("replication of %s/%s failed: %w", src.Bucket, src.Key, lastErr)
}

func (r *S3Replicator) copy(ctx context.Context, src task.Location, destBucket, destKey string, info storage.ObjectInfo) error {
	srcObj, err := r.src.GetObject(ctx, src.Bucket, src.Key)
	if err != nil {
		return fmt.Errorf("failed to get source object: %w", err)
	}
	defer srcObj.Close()

	if info.Size < r.config.MultipartThreshold {
		return r.uploadSingle(ctx, destBucket, destKey, srcObj, info)
	}

	return r.uploadMultipart(ctx, destBucket, destKey, srcObj, info)
}

func (r *S3Replicator) uploadSingle(ctx context.Context, bucket, key string, reader io.Reader, info storage.ObjectInfo) error {
	return r.dst.PutObject(ctx, bucket, key, reader, info.Size, putOptions(info))
}

func (r *S3Replicator) uploadMultipart(ctx context.Context, bucket, key string, reader io.Reader, info storage.ObjectInfo) error {
	uploadID, err := r.dst.NewMultipartUpload(ctx, bucket, key, putOptions(info))
	if err != nil {
		return fmt.Errorf("failed to initiate multipart upload: %w", err)
	}

	partCount := int(math.Ceil(float64(info.Size) / float64(r.config.PartSize)))
	parts := make([]storage.CompletedPart, 0, partCount)

	for partNum := 1; partNum <= partCount; partNum++ {
		partSize := r.config.PartSize
		if int64(partNum-1)*r.config.PartSize+partSize > info.Size {
			partSize = info.Size - int64(partNum-1)*r.config.PartSize
		}

		partData := make([]byte, partSize)
		n, err := io.ReadFull(reader, partData)
		if err != nil && err != io.ErrUnexpectedEOF {
			r.dst.AbortMultipartUpload(ctx, bucket, key, uploadID)
			return fmt.Errorf("failed to read part %d: %w", partNum, err)
		}
		partData = partData[:n]

		etag, err := r.dst.UploadPart(ctx, bucket, key, uploadID, partNum,
			bytes.NewReader(partData), int64(len(partData)))
		if err != nil {
			r.dst.AbortMultipartUpload(ctx, bucket, key, uploadID)
			return fmt.Errorf("failed to upload part %d: %w", partNum, err)
		}

		parts = append(parts, storage.CompletedPart{
			PartNumber: partNum,
			ETag:       etag,
		})
	}

	return r.dst.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts)
}

func putOptions(info storage.ObjectInfo) storage.PutOptions {
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return storage.PutOptions{
		ContentType: contentType,
		Metadata:    info.Metadata,
	}
}

func (r *S3Replicator) backoff(attempt int) time.Duration {
	return r.config.RetryBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
}

func isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "temporary") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "dns") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout")
}
