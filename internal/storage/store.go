package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quotedesk/fieldsync/pkg/db/models"
)

// Cache keys are the store's two logical partitions.
const (
	KeyRecordIndex = "record_index"
	KeyDraftSlot   = "draft_slot"
)

// Store is the durable key-value layer under the quote cache. It is
// owned exclusively by the quotes repository; nothing else reads or
// writes cache entries.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored bytes, or nil when the key has never been set.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// Set writes the value for key, replacing any previous value. The
// upsert is a single statement so a crash can never leave a partial
// write behind.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	entry := models.CacheEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

// Remove deletes the key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&models.CacheEntry{}).Error
}
