package models

import "time"

// CacheEntry is one logical partition of the durable key-value store.
// The queue lives under a single record-index key; the draft slot under
// another.
type CacheEntry struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     []byte    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName pins the goose-managed table name.
func (CacheEntry) TableName() string {
	return "cache_entries"
}
