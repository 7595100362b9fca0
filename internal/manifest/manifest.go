// Package manifest loads the initial set of file records to process.
package manifest

import (
	"fmt"
	"os"

	"filerelay/internal/task"

	"gopkg.in/yaml.v3"
)

// Entry describes one file record in the manifest.
type Entry struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	SourceBucket string            `yaml:"source_bucket"`
	SourceKey    string            `yaml:"source_key"`
	Meta         map[string]string `yaml:"meta"`
}

// Manifest is an ordered collection of file records.
type Manifest struct {
	Files []Entry `yaml:"files"`
}

// Load reads and validates a YAML manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return &m, nil
}

func (m *Manifest) validate() error {
	seen := make(map[string]struct{}, len(m.Files))

	for i, f := range m.Files {
		if f.ID == "" {
			return fmt.Errorf("entry %d: id is required", i)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("entry %d: duplicate id %q", i, f.ID)
		}
		seen[f.ID] = struct{}{}

		if f.SourceBucket == "" {
			return fmt.Errorf("entry %q: source_bucket is required", f.ID)
		}
		if f.SourceKey == "" {
			return fmt.Errorf("entry %q: source_key is required", f.ID)
		}
	}

	return nil
}

// Tasks converts the manifest into ready pipeline tasks targeting destBucket.
func (m *Manifest) Tasks(destBucket string) []*task.FileTask {
	tasks := make([]*task.FileTask, 0, len(m.Files))
	for _, f := range m.Files {
		src := task.Location{Bucket: f.SourceBucket, Key: f.SourceKey}
		tasks = append(tasks, task.New(f.ID, f.Name, src, destBucket, f.Meta))
	}
	return tasks
}
