package quotes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quotedesk/fieldsync/internal/storage"
	"github.com/quotedesk/fieldsync/pkg/db/models"
	"github.com/quotedesk/fieldsync/pkg/enums"
	pkgerrors "github.com/quotedesk/fieldsync/pkg/errors"
	"github.com/quotedesk/fieldsync/pkg/logger"
)

// store is the slice of the durable KV layer the repository needs.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Repository owns the queue of QuoteRecords. Every operation is a
// read-modify-write of the whole serialized index under one mutex;
// there is no per-record locking, so the repository is the only
// component allowed to touch the index.
type Repository struct {
	store store
	logg  *logger.Logger
	now   func() time.Time

	mu sync.Mutex
}

// NewRepository builds a repository over the durable store.
func NewRepository(st store, logg *logger.Logger) *Repository {
	return &Repository{
		store: st,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create appends a new pending record stamped with the active tenant
// scope. The id is client-generated and never reassigned; it is the
// only de-duplication key the client has.
func (r *Repository) Create(ctx context.Context, payload json.RawMessage, tenantID string) (models.QuoteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := models.QuoteRecord{
		ID:           uuid.New(),
		Payload:      payload,
		Status:       enums.QuoteStatusPending,
		LastModified: r.now(),
		TenantID:     tenantID,
	}

	index, err := r.loadIndex(ctx)
	if err != nil {
		return models.QuoteRecord{}, err
	}
	index = upsertByID(index, record)
	if err := r.saveIndex(ctx, index); err != nil {
		return models.QuoteRecord{}, err
	}
	return record, nil
}

// List returns every record in the cache, synced history included.
func (r *Repository) List(ctx context.Context) ([]models.QuoteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadIndex(ctx)
}

// Get returns the record with the given id, or nil when absent.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.QuoteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range index {
		if record.ID == id {
			rec := record
			return &rec, nil
		}
	}
	return nil, nil
}

// MarkSynced moves a record into its terminal success state and stamps
// the server-assigned number. This is the only path that sets a server
// number, which keeps the synced-iff-numbered invariant in one place.
func (r *Repository) MarkSynced(ctx context.Context, id uuid.UUID, serverNumber string) error {
	return r.updateStatus(ctx, id, enums.QuoteStatusSynced, &serverNumber, nil)
}

// MarkFailed records a terminal submission failure and its cause.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	return r.updateStatus(ctx, id, enums.QuoteStatusFailed, nil, &cause)
}

// Requeue re-enqueues a failed record for the next flush pass.
func (r *Repository) Requeue(ctx context.Context, id uuid.UUID) error {
	return r.updateStatus(ctx, id, enums.QuoteStatusPending, nil, nil)
}

// updateStatus is a no-op for an unknown id: the user may have removed
// the record while a flush held a snapshot of it.
func (r *Repository) updateStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus, serverNumber, cause *string) error {
	if serverNumber != nil && status != enums.QuoteStatusSynced {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "server number requires synced status")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex(ctx)
	if err != nil {
		return err
	}
	for i, record := range index {
		if record.ID != id {
			continue
		}
		if record.Status == status {
			// A repeat rejection can carry a fresher cause. Keep
			// LastModified as-is so the flush order is unchanged.
			if status == enums.QuoteStatusFailed && cause != nil && !equalCause(record.LastError, cause) {
				index[i].LastError = cause
				return r.saveIndex(ctx, index)
			}
			return nil
		}
		if !record.Status.CanTransitionTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transition disallowed").
				WithDetails(map[string]any{"from": record.Status, "to": status})
		}
		index[i].Status = status
		index[i].ServerNumber = serverNumber
		index[i].LastError = cause
		index[i].LastModified = r.now()
		return r.saveIndex(ctx, index)
	}
	return nil
}

// Remove deletes a record. Only the user removes records; the sync
// engine never does, so submitted quotes stay visible as local history.
func (r *Repository) Remove(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex(ctx)
	if err != nil {
		return err
	}
	kept := index[:0]
	for _, record := range index {
		if record.ID != id {
			kept = append(kept, record)
		}
	}
	return r.saveIndex(ctx, kept)
}

// ClearAll wipes the queue.
func (r *Repository) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Remove(ctx, storage.KeyRecordIndex)
}

// loadIndex degrades a corrupt index to an empty list: a blocked cache
// is worse than a data-loss-recovered empty one. Read errors are not
// corruption and must surface, or a mutation on top of the empty read
// would overwrite records that are still intact on disk.
func (r *Repository) loadIndex(ctx context.Context) ([]models.QuoteRecord, error) {
	raw, err := r.store.Get(ctx, storage.KeyRecordIndex)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "reading record index")
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var index []models.QuoteRecord
	if err := json.Unmarshal(raw, &index); err != nil {
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "record index corrupt, starting empty")
		}
		return nil, nil
	}
	return index, nil
}

func (r *Repository) saveIndex(ctx context.Context, index []models.QuoteRecord) error {
	raw, err := json.Marshal(index)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "serializing record index")
	}
	if err := r.store.Set(ctx, storage.KeyRecordIndex, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persisting record index")
	}
	return nil
}

func equalCause(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func upsertByID(index []models.QuoteRecord, record models.QuoteRecord) []models.QuoteRecord {
	for i, existing := range index {
		if existing.ID == record.ID {
			index[i] = record
			return index
		}
	}
	return append(index, record)
}
