package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quotedesk/fieldsync/api/controllers"
	"github.com/quotedesk/fieldsync/api/middleware"
	"github.com/quotedesk/fieldsync/pkg/config"
	"github.com/quotedesk/fieldsync/pkg/db"
	"github.com/quotedesk/fieldsync/pkg/logger"
)

// Deps carries everything the inspector API serves. The API is a local
// control surface for the host application, not a public service, so it
// has no auth of its own.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Repo     controllers.QueueRepository
	Drafts   controllers.DraftStore
	Engine   interface {
		controllers.SyncEngine
		controllers.Promoter
	}
	Sessions controllers.SessionInstaller
	Registry *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB))
	})
	r.Get("/healthz", controllers.HealthLive(cfg))

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/queue", func(r chi.Router) {
			r.Get("/", controllers.QueueList(deps.Repo, logg))
			r.Get("/{quoteId}", controllers.QueueDetail(deps.Repo, logg))
			r.Delete("/{quoteId}", controllers.QueueRemove(deps.Repo, logg))
			r.Post("/{quoteId}/requeue", controllers.QueueRequeue(deps.Repo, logg))
		})

		r.Route("/draft", func(r chi.Router) {
			r.Get("/", controllers.DraftFetch(deps.Drafts, logg))
			r.Put("/", controllers.DraftSave(deps.Drafts, logg))
			r.Delete("/", controllers.DraftClear(deps.Drafts, logg))
			r.Post("/promote", controllers.DraftPromote(deps.Drafts, deps.Engine, logg))
		})

		r.Post("/flush", controllers.SyncFlush(deps.Engine, logg))
		r.Get("/status", controllers.SyncStatus(deps.Engine, logg))

		r.Put("/session", controllers.SessionInstall(deps.Sessions, logg))
		r.Delete("/session", controllers.SessionClear(deps.Sessions, logg))
	})

	return r
}
