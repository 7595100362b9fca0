// Package registry implements the metadata registration collaborator: posting
// a replicated file's metadata to the remote file API.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"filerelay/internal/objectkey"
	"filerelay/internal/task"
)

// Registrar registers a replicated file's metadata and returns its upload id.
// Implementations must be safe for concurrent use.
type Registrar interface {
	Register(ctx context.Context, meta map[string]string, dest task.Location) (string, error)
}

// HTTPDoer describes the HTTP client used by the registry client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client registers file metadata against the remote API over HTTP.
//
// The upload id is not minted by the API: it is the UUID segment already
// embedded in the destination key, submitted with the request and echoed back.
// This couples registration identity to the key format minted at transfer time.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
	retries int
	backoff time.Duration
}

// Config contains registry client configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// NewClient creates a registry client. A nil doer falls back to a
// timeout-bounded http.Client.
func NewClient(cfg Config, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}

	retries := cfg.Retries
	if retries <= 0 {
		retries = 1
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.Token),
		client:  doer,
		retries: retries,
		backoff: cfg.Backoff,
	}
}

type registerRequest struct {
	UploadID string            `json:"upload_id"`
	Bucket   string            `json:"bucket"`
	Key      string            `json:"key"`
	Meta     map[string]string `json:"meta"`
}

type registerResponse struct {
	ID string `json:"id"`
}

// Register submits the file's metadata to the API and returns the upload id.
func (c *Client) Register(ctx context.Context, meta map[string]string, dest task.Location) (string, error) {
	uploadID, err := objectkey.UploadID(dest.Key)
	if err != nil {
		return "", fmt.Errorf("cannot derive upload id: %w", err)
	}

	body, err := json.Marshal(registerRequest{
		UploadID: uploadID,
		Bucket:   dest.Bucket,
		Key:      dest.Key,
		Meta:     meta,
	})
	if err != nil {
		return "", fmt.Errorf("marshal register request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		id, retriable, err := c.post(ctx, body)
		if err == nil {
			if id != uploadID {
				return "", fmt.Errorf("api returned id %q, expected %q", id, uploadID)
			}
			return id, nil
		}

		lastErr = err
		if !retriable {
			break
		}

		if attempt < c.retries {
			select {
			case <-time.After(c.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("register %s/%s failed: %w", dest.Bucket, dest.Key, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (id string, retriable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("post register request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", true, fmt.Errorf("api returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", false, fmt.Errorf("api returned %d", resp.StatusCode)
	}

	var out registerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode register response: %w", err)
	}

	return out.ID, false, nil
}
