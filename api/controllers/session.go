package controllers

import (
	"net/http"
	"time"

	"github.com/quotedesk/fieldsync/api/responses"
	"github.com/quotedesk/fieldsync/api/validators"
	pkgerrors "github.com/quotedesk/fieldsync/pkg/errors"
	"github.com/quotedesk/fieldsync/pkg/logger"
	"github.com/quotedesk/fieldsync/pkg/session"
)

// SessionInstaller swaps the active bearer token.
type SessionInstaller interface {
	Install(rawToken string) (session.Context, error)
	Clear()
}

type sessionInstallRequest struct {
	Token string `json:"token" validate:"required"`
}

type sessionView struct {
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// SessionInstall accepts a refreshed token from the host application.
// Tokens are minted elsewhere; this endpoint only adopts them.
func SessionInstall(sessions SessionInstaller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session provider unavailable"))
			return
		}

		var req sessionInstallRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		installed, err := sessions.Install(req.Token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := sessionView{TenantID: installed.TenantID, UserID: installed.UserID}
		if !installed.ExpiresAt.IsZero() {
			view.ExpiresAt = installed.ExpiresAt.UTC().Format(time.RFC3339)
		}
		responses.WriteSuccess(w, view)
	}
}

func SessionClear(sessions SessionInstaller, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session provider unavailable"))
			return
		}
		sessions.Clear()
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}
