package controllers

import (
	"context"
	"net/http"

	"github.com/quotedesk/fieldsync/api/responses"
	"github.com/quotedesk/fieldsync/internal/syncengine"
	pkgerrors "github.com/quotedesk/fieldsync/pkg/errors"
	"github.com/quotedesk/fieldsync/pkg/logger"
)

// SyncEngine is the flush surface the sync endpoints need.
type SyncEngine interface {
	TriggerFlush(trigger syncengine.Trigger)
	Status(ctx context.Context) (syncengine.Status, error)
}

// SyncFlush requests a flush pass and returns immediately; the engine
// coalesces it with any pass already running.
func SyncFlush(engine SyncEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync engine unavailable"))
			return
		}

		engine.TriggerFlush(syncengine.TriggerManual)
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "flush requested"})
	}
}

func SyncStatus(engine SyncEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync engine unavailable"))
			return
		}

		status, err := engine.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
