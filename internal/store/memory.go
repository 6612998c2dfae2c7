package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fraywing/threadcast/internal/models"
)

// MemoryStore is the mutex-guarded in-memory store used in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.PublishRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.PublishRecord)}
}

func (s *MemoryStore) Get(ctx context.Context, slug string) (*models.PublishRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[slug]
	if !ok {
		return nil, nil
	}
	copied := record
	return &copied, nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, record *models.PublishRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.Slug]; ok {
		return ErrRecordExists
	}
	s.records[record.Slug] = *record
	return nil
}

func (s *MemoryStore) Put(ctx context.Context, record *models.PublishRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.Slug] = *record
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*models.PublishRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*models.PublishRecord, 0, len(s.records))
	for _, record := range s.records {
		copied := record
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PostedAt.After(records[j].PostedAt)
	})
	return records, nil
}
