package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"filerelay/internal/manifest"
	"filerelay/internal/task"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "files.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndConvertToTasks(t *testing.T) {
	path := writeManifest(t, `
files:
  - id: "1"
    name: file_100.pdf
    source_bucket: src-bucket-proj
    source_key: project1/uuid1
    meta:
      fileId: "100"
      type: project1
  - id: "2"
    name: file_101.pdf
    source_bucket: src-bucket-proj
    source_key: project1/uuid2
    meta:
      fileId: "101"
      type: project1
`)

	m, err := manifest.Load(path)
	require.NoError(t, err)
	require.Len(t, m.Files, 2)

	tasks := m.Tasks("dest-bucket-proj")
	require.Len(t, tasks, 2)

	first := tasks[0]
	require.Equal(t, "1", first.ID)
	require.Equal(t, "file_100.pdf", first.Name)
	require.Equal(t, task.Location{Bucket: "src-bucket-proj", Key: "project1/uuid1"}, first.Source)
	require.Equal(t, "dest-bucket-proj", first.Dest.Bucket)
	require.Empty(t, first.Dest.Key)
	require.Equal(t, task.StatusReady, first.Status)
	require.Equal(t, "100", first.Meta["fileId"])
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := writeManifest(t, `
files:
  - {id: "1", source_bucket: b, source_key: k1}
  - {id: "1", source_bucket: b, source_key: k2}
`)

	_, err := manifest.Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate id")
}

func TestLoadRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"missing id":     `{files: [{source_bucket: b, source_key: k}]}`,
		"missing bucket": `{files: [{id: "1", source_key: k}]}`,
		"missing key":    `{files: [{id: "1", source_bucket: b}]}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := manifest.Load(writeManifest(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoadEmptyManifest(t *testing.T) {
	m, err := manifest.Load(writeManifest(t, "files: []"))
	require.NoError(t, err)
	require.Empty(t, m.Tasks("dest"))
}
