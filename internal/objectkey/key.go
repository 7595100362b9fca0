// Package objectkey mints and parses destination object keys.
//
// A key is a UTC timestamp path followed by a fresh UUID, seven slash-delimited
// segments in total, e.g. 2025/01/15/14/30/45/550e8400-e29b-41d4-a716-446655440000.
// The trailing UUID doubles as the task's registration identity, so the format
// is a wire contract shared by the transfer and metadata stages.
package objectkey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	timeLayout  = "2006/01/02/15/04/05"
	numSegments = 7
)

// New mints a destination key for an object replicated at the given time.
func New(now time.Time) string {
	return now.UTC().Format(timeLayout) + "/" + uuid.NewString()
}

// UploadID extracts the UUID segment from a destination key.
func UploadID(key string) (string, error) {
	if err := Validate(key); err != nil {
		return "", err
	}
	return key[strings.LastIndex(key, "/")+1:], nil
}

// Validate checks the seven-segment timestamp/UUID shape.
func Validate(key string) error {
	parts := strings.Split(key, "/")
	if len(parts) != numSegments {
		return fmt.Errorf("destination key %q: expected %d segments, got %d", key, numSegments, len(parts))
	}

	if _, err := time.Parse(timeLayout, strings.Join(parts[:numSegments-1], "/")); err != nil {
		return fmt.Errorf("destination key %q: invalid timestamp prefix: %w", key, err)
	}

	if _, err := uuid.Parse(parts[numSegments-1]); err != nil {
		return fmt.Errorf("destination key %q: invalid upload id segment: %w", key, err)
	}

	return nil
}
