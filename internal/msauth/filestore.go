package msauth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the credential record as a JSON file with restrictive
// permissions. Saves serialize through a mutex and replace the file
// atomically (write to a temp file, then rename), so an interrupted save
// leaves the previous valid record readable.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the given path. The parent
// directory is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and parses the record file.
func (s *FileStore) Load(ctx context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	return &record, nil
}

// Save writes the record atomically with 0600 permissions.
func (s *FileStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up the temp file on any failure path.
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credential file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}

	return nil
}
