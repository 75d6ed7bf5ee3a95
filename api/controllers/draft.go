package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/quotedesk/fieldsync/api/responses"
	"github.com/quotedesk/fieldsync/api/validators"
	"github.com/quotedesk/fieldsync/internal/quotes"
	"github.com/quotedesk/fieldsync/pkg/db/models"
	pkgerrors "github.com/quotedesk/fieldsync/pkg/errors"
	"github.com/quotedesk/fieldsync/pkg/logger"
)

// DraftStore is the autosave surface the draft endpoints need.
type DraftStore interface {
	Save(ctx context.Context, payload json.RawMessage) error
	Load(ctx context.Context) (*models.DraftSlot, error)
	Clear(ctx context.Context) error
}

// Promoter turns the draft slot into a queued record.
type Promoter interface {
	Promote(ctx context.Context) (models.QuoteRecord, error)
}

func DraftFetch(drafts DraftStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if drafts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "draft store unavailable"))
			return
		}

		slot, err := drafts.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if slot == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no draft saved"))
			return
		}
		responses.WriteSuccess(w, slot)
	}
}

// DraftSave overwrites the slot. The body is the draft payload itself
// and is deliberately not validated: autosave captures work in
// progress, and half-filled quotes are its whole point.
func DraftSave(drafts DraftStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if drafts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "draft store unavailable"))
			return
		}

		var payload json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "draft body must be valid JSON"))
			return
		}

		if err := drafts.Save(r.Context(), payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "saved"})
	}
}

func DraftClear(drafts DraftStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if drafts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "draft store unavailable"))
			return
		}

		if err := drafts.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

// DraftPromote validates the saved draft as a complete quote and moves
// it into the queue.
func DraftPromote(drafts DraftStore, promoter Promoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if drafts == nil || promoter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync engine unavailable"))
			return
		}

		slot, err := drafts.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if slot == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no draft to promote"))
			return
		}

		var payload quotes.Payload
		if err := validators.ValidateJSON(slot.Payload, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := promoter.Promote(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}
