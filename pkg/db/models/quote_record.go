package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/quotedesk/fieldsync/pkg/enums"
)

// QuoteRecord is the unit of durable queued work. The whole queue is
// serialized as a JSON list under the record-index cache key; records
// are not individual rows.
//
// Invariants, enforced by the quotes repository:
//   - IDs are unique; writes with an existing ID overwrite, never duplicate.
//   - ServerNumber is set if and only if Status is synced.
//   - A synced record never changes status or server number again.
type QuoteRecord struct {
	ID           uuid.UUID         `json:"id"`
	ServerNumber *string           `json:"server_number,omitempty"`
	Payload      json.RawMessage   `json:"payload"`
	Status       enums.QuoteStatus `json:"status"`
	LastError    *string           `json:"last_error,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	TenantID     string            `json:"tenant_id"`
}

// DraftSlot is the single-record autosave buffer. Best effort only;
// losing it is acceptable, losing a pending QuoteRecord is not.
type DraftSlot struct {
	Payload json.RawMessage `json:"payload"`
	SavedAt time.Time       `json:"saved_at"`
}
