package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fraywing/threadcast/internal/models"
)

// GormStore persists publish records in postgres. The unique index on slug
// plus ON CONFLICT DO NOTHING gives PutIfAbsent its atomicity, so concurrent
// runners on separate hosts are safe too.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, slug string) (*models.PublishRecord, error) {
	var record models.PublishRecord
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return &record, nil
}

func (s *GormStore) PutIfAbsent(ctx context.Context, record *models.PublishRecord) error {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return fmt.Errorf("failed to create record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordExists
	}
	return nil
}

func (s *GormStore) Put(ctx context.Context, record *models.PublishRecord) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			UpdateAll: true,
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context) ([]*models.PublishRecord, error) {
	var records []*models.PublishRecord
	err := s.db.WithContext(ctx).Order("posted_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}
