package controllers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quotedesk/fieldsync/api/responses"
	"github.com/quotedesk/fieldsync/pkg/db/models"
	"github.com/quotedesk/fieldsync/pkg/enums"
	pkgerrors "github.com/quotedesk/fieldsync/pkg/errors"
	"github.com/quotedesk/fieldsync/pkg/logger"
)

// QueueRepository is the record surface the queue endpoints need.
type QueueRepository interface {
	List(ctx context.Context) ([]models.QuoteRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*models.QuoteRecord, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Requeue(ctx context.Context, id uuid.UUID) error
}

// QueueList returns every cached record, oldest-modified first, with an
// optional ?status= filter.
func QueueList(repo QueueRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "record repository unavailable"))
			return
		}

		records, err := repo.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseQuoteStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filtered := records[:0:0]
			for _, record := range records {
				if record.Status == status {
					filtered = append(filtered, record)
				}
			}
			records = filtered
		}

		sort.SliceStable(records, func(i, j int) bool {
			return records[i].LastModified.Before(records[j].LastModified)
		})
		if records == nil {
			records = []models.QuoteRecord{}
		}
		responses.WriteSuccess(w, records)
	}
}

func QueueDetail(repo QueueRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "record repository unavailable"))
			return
		}

		id, err := parseQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := repo.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if record == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "quote record not found"))
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// QueueRemove discards a record. The queue engine never deletes records
// on its own; this is the one explicit user path.
func QueueRemove(repo QueueRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "record repository unavailable"))
			return
		}

		id, err := parseQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := repo.Remove(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": id.String(), "status": "removed"})
	}
}

// QueueRequeue moves a failed record back to pending so the next flush
// picks it up again.
func QueueRequeue(repo QueueRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "record repository unavailable"))
			return
		}

		id, err := parseQuoteID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := repo.Requeue(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := repo.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if record == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "quote record not found"))
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func parseQuoteID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "quoteId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quote id")
	}
	return id, nil
}
