package quotes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/quotedesk/fieldsync/internal/storage"
	"github.com/quotedesk/fieldsync/pkg/db/models"
	pkgerrors "github.com/quotedesk/fieldsync/pkg/errors"
	"github.com/quotedesk/fieldsync/pkg/logger"
)

// Autosave is the single-slot work-in-progress buffer. It exists for
// crash and navigation recovery only; it carries no state machine and
// losing it is acceptable.
type Autosave struct {
	store store
	logg  *logger.Logger
	now   func() time.Time
}

func NewAutosave(st store, logg *logger.Logger) *Autosave {
	return &Autosave{
		store: st,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Save overwrites the slot unconditionally.
func (a *Autosave) Save(ctx context.Context, payload json.RawMessage) error {
	slot := models.DraftSlot{
		Payload: payload,
		SavedAt: a.now(),
	}
	raw, err := json.Marshal(slot)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "serializing draft slot")
	}
	if err := a.store.Set(ctx, storage.KeyDraftSlot, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persisting draft slot")
	}
	return nil
}

// Load returns the slot, or nil when empty. A corrupt slot reads as
// empty, same fail-open posture as the record index.
func (a *Autosave) Load(ctx context.Context) (*models.DraftSlot, error) {
	raw, err := a.store.Get(ctx, storage.KeyDraftSlot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "reading draft slot")
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var slot models.DraftSlot
	if err := json.Unmarshal(raw, &slot); err != nil {
		if a.logg != nil {
			a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "draft slot corrupt, discarding")
		}
		return nil, nil
	}
	return &slot, nil
}

// Clear empties the slot. Clearing an empty slot is fine.
func (a *Autosave) Clear(ctx context.Context) error {
	return a.store.Remove(ctx, storage.KeyDraftSlot)
}
