package objectkey_test

import (
	"strings"
	"testing"
	"time"

	"filerelay/internal/objectkey"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewFormat(t *testing.T) {
	before := time.Now().UTC().Truncate(time.Second)
	key := objectkey.New(time.Now())
	after := time.Now().UTC()

	parts := strings.Split(key, "/")
	require.Len(t, parts, 7)

	ts, err := time.Parse("2006/01/02/15/04/05", strings.Join(parts[:6], "/"))
	require.NoError(t, err)
	require.False(t, ts.Before(before), "timestamp %v before run start %v", ts, before)
	require.False(t, ts.After(after), "timestamp %v after run end %v", ts, after)

	_, err = uuid.Parse(parts[6])
	require.NoError(t, err)
}

func TestNewKeysAreDistinct(t *testing.T) {
	now := time.Now()
	seen := make(map[string]struct{})

	for i := 0; i < 1000; i++ {
		key := objectkey.New(now)
		_, dup := seen[key]
		require.False(t, dup, "duplicate key %q", key)
		seen[key] = struct{}{}
	}
}

func TestUploadIDRoundTrip(t *testing.T) {
	key := objectkey.New(time.Date(2025, 1, 15, 14, 30, 45, 0, time.UTC))

	id, err := objectkey.UploadID(key)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(key, "/"+id))

	_, err = uuid.Parse(id)
	require.NoError(t, err)
}

func TestUploadIDKnownKey(t *testing.T) {
	id, err := objectkey.UploadID("2025/01/15/14/30/45/550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	require.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id)
}

func TestValidateRejectsMalformedKeys(t *testing.T) {
	cases := map[string]string{
		"too few segments":  "2025/01/15/550e8400-e29b-41d4-a716-446655440000",
		"too many segments": "2025/01/15/14/30/45/00/550e8400-e29b-41d4-a716-446655440000",
		"bad timestamp":     "2025/13/40/14/30/45/550e8400-e29b-41d4-a716-446655440000",
		"bad uuid":          "2025/01/15/14/30/45/not-a-uuid",
		"empty":             "",
	}

	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, objectkey.Validate(key))
		})
	}
}
