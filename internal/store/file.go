package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fraywing/threadcast/internal/models"
)

// FileStore keeps one JSON marker file per slug under a state directory. It
// is the default store: a CI job only needs a writable directory. Atomicity
// of PutIfAbsent comes from O_EXCL file creation.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(slug string) string {
	return filepath.Join(s.dir, slug+".json")
}

func (s *FileStore) Get(ctx context.Context, slug string) (*models.PublishRecord, error) {
	data, err := os.ReadFile(s.path(slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var record models.PublishRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record for %s: %w", slug, err)
	}
	return &record, nil
}

func (s *FileStore) PutIfAbsent(ctx context.Context, record *models.PublishRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	f, err := os.OpenFile(s.path(record.Slug), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrRecordExists
		}
		return fmt.Errorf("failed to create record: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (s *FileStore) Put(ctx context.Context, record *models.PublishRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	// Write-then-rename so readers never observe a torn record
	tmp := s.path(record.Slug) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp, s.path(record.Slug)); err != nil {
		return fmt.Errorf("failed to finalize record: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]*models.PublishRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var records []*models.PublishRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		slug := strings.TrimSuffix(entry.Name(), ".json")
		record, err := s.Get(ctx, slug)
		if err != nil || record == nil {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].PostedAt.After(records[j].PostedAt)
	})
	return records, nil
}
