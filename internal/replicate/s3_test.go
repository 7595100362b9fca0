package replicate_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"filerelay/internal/objectkey"
	"filerelay/internal/replicate"
	"filerelay/internal/storage"
	"filerelay/internal/task"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClient is an in-memory storage.Client.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte // "bucket/key" -> content

	putErrs []error // consumed once per PutObject call
	putKeys []string
	parts   map[string]int // uploadID -> parts uploaded
	aborted []string
	partErr error
	puts    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects: make(map[string][]byte),
		parts:   make(map[string]int),
	}
}

func (c *fakeClient) addObject(bucket, key string, content []byte) {
	c.objects[bucket+"/"+key] = content
}

func (c *fakeClient) GetObject(_ context.Context, bucket, key string) (storage.Object, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	content, ok := c.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return &fakeObject{Reader: bytes.NewReader(content), size: int64(len(content))}, nil
}

func (c *fakeClient) PutObject(_ context.Context, bucket, key string, reader io.Reader, size int64, _ storage.PutOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.puts++
	c.putKeys = append(c.putKeys, key)
	if len(c.putErrs) > 0 {
		err := c.putErrs[0]
		c.putErrs = c.putErrs[1:]
		if err != nil {
			return err
		}
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	c.objects[bucket+"/"+key] = content
	return nil
}

func (c *fakeClient) StatObject(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	content, ok := c.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectInfo{}, errors.New("object not found")
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(content)), ContentType: "application/pdf"}, nil
}

func (c *fakeClient) NewMultipartUpload(_ context.Context, _, key string, _ storage.PutOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := "upload-" + key
	c.parts[id] = 0
	return id, nil
}

func (c *fakeClient) UploadPart(_ context.Context, _, _, uploadID string, partNumber int, _ io.Reader, _ int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.partErr != nil {
		return "", c.partErr
	}
	c.parts[uploadID]++
	return "etag", nil
}

func (c *fakeClient) CompleteMultipartUpload(_ context.Context, bucket, key, uploadID string, parts []storage.CompletedPart) error {
	return nil
}

func (c *fakeClient) AbortMultipartUpload(_ context.Context, _, _, uploadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted = append(c.aborted, uploadID)
	return nil
}

type fakeObject struct {
	*bytes.Reader
	size int64
}

func (o *fakeObject) Close() error { return nil }
func (o *fakeObject) Stat() (storage.ObjectInfo, error) {
	return storage.ObjectInfo{Size: o.size}, nil
}

func newReplicator(src, dst *fakeClient, cfg replicate.Config) *replicate.S3Replicator {
	if cfg.MultipartThreshold == 0 {
		cfg.MultipartThreshold = 1 << 20
	}
	if cfg.PartSize == 0 {
		cfg.PartSize = 1 << 18
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return replicate.NewS3Replicator(src, dst, cfg, zap.NewNop())
}

func TestReplicateCopiesObjectUnderMintedKey(t *testing.T) {
	src := newFakeClient()
	src.addObject("src-bucket", "project1/uuid1", []byte("pdf bytes"))
	dst := newFakeClient()

	r := newReplicator(src, dst, replicate.Config{})
	key, err := r.Replicate(context.Background(), task.Location{Bucket: "src-bucket", Key: "project1/uuid1"}, "dest-bucket")

	require.NoError(t, err)
	require.NoError(t, objectkey.Validate(key))
	require.Equal(t, []byte("pdf bytes"), dst.objects["dest-bucket/"+key])
}

func TestReplicateRetriesRetriableErrorsWithStableKey(t *testing.T) {
	src := newFakeClient()
	src.addObject("src-bucket", "k", []byte("content"))
	dst := newFakeClient()
	dst.putErrs = []error{errors.New("connection reset")}

	r := newReplicator(src, dst, replicate.Config{})
	key, err := r.Replicate(context.Background(), task.Location{Bucket: "src-bucket", Key: "k"}, "dest-bucket")

	require.NoError(t, err)
	require.Equal(t, 2, dst.puts)
	// Both attempts targeted the same destination key, keeping the retry idempotent.
	require.Equal(t, []string{key, key}, dst.putKeys)
}

func TestReplicateStopsOnNonRetriableError(t *testing.T) {
	src := newFakeClient()
	src.addObject("src-bucket", "k", []byte("content"))
	dst := newFakeClient()
	dst.putErrs = []error{errors.New("access denied"), errors.New("access denied")}

	r := newReplicator(src, dst, replicate.Config{})
	_, err := r.Replicate(context.Background(), task.Location{Bucket: "src-bucket", Key: "k"}, "dest-bucket")

	require.Error(t, err)
	require.Contains(t, err.Error(), "access denied")
	require.Equal(t, 1, dst.puts)
}

func TestReplicateFailsWhenSourceMissing(t *testing.T) {
	r := newReplicator(newFakeClient(), newFakeClient(), replicate.Config{})
	_, err := r.Replicate(context.Background(), task.Location{Bucket: "src-bucket", Key: "missing"}, "dest-bucket")

	require.Error(t, err)
	require.Contains(t, err.Error(), "stat source object")
}

func TestReplicateUsesMultipartAboveThreshold(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 1000)
	src := newFakeClient()
	src.addObject("src-bucket", "big", content)
	dst := newFakeClient()

	r := newReplicator(src, dst, replicate.Config{MultipartThreshold: 500, PartSize: 300})
	key, err := r.Replicate(context.Background(), task.Location{Bucket: "src-bucket", Key: "big"}, "dest-bucket")

	require.NoError(t, err)
	require.Zero(t, dst.puts, "expected multipart path, not a single put")
	require.Equal(t, 4, dst.parts["upload-"+key]) // ceil(1000/300)
}

func TestReplicateAbortsMultipartOnPartFailure(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 1000)
	src := newFakeClient()
	src.addObject("src-bucket", "big", content)
	dst := newFakeClient()
	dst.partErr = errors.New("access denied")

	r := newReplicator(src, dst, replicate.Config{MultipartThreshold: 500, PartSize: 300, Retries: 1})
	_, err := r.Replicate(context.Background(), task.Location{Bucket: "src-bucket", Key: "big"}, "dest-bucket")

	require.Error(t, err)
	require.NotEmpty(t, dst.aborted)
}
