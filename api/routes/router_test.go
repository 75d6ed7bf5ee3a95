package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quotedesk/fieldsync/internal/syncengine"
	"github.com/quotedesk/fieldsync/pkg/config"
	"github.com/quotedesk/fieldsync/pkg/db/models"
	"github.com/quotedesk/fieldsync/pkg/session"
)

type stubRepo struct{}

func (stubRepo) List(context.Context) ([]models.QuoteRecord, error)          { return nil, nil }
func (stubRepo) Get(context.Context, uuid.UUID) (*models.QuoteRecord, error) { return nil, nil }
func (stubRepo) Remove(context.Context, uuid.UUID) error                     { return nil }
func (stubRepo) Requeue(context.Context, uuid.UUID) error                    { return nil }

type stubDrafts struct{}

func (stubDrafts) Save(context.Context, json.RawMessage) error     { return nil }
func (stubDrafts) Load(context.Context) (*models.DraftSlot, error) { return nil, nil }
func (stubDrafts) Clear(context.Context) error                     { return nil }

type stubEngine struct{}

func (stubEngine) TriggerFlush(syncengine.Trigger) {}
func (stubEngine) Status(context.Context) (syncengine.Status, error) {
	return syncengine.Status{Counts: map[string]int{}}, nil
}
func (stubEngine) Promote(context.Context) (models.QuoteRecord, error) {
	return models.QuoteRecord{}, nil
}

func newTestRouter() http.Handler {
	return NewRouter(Deps{
		Config:   &config.Config{App: config.AppConfig{Env: "dev"}},
		Repo:     stubRepo{},
		Drafts:   stubDrafts{},
		Engine:   stubEngine{},
		Sessions: session.NewProvider(),
		Registry: prometheus.NewRegistry(),
	})
}

func TestRouterServesHealth(t *testing.T) {
	router := newTestRouter()

	for _, path := range []string{"/healthz", "/health/live"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 but got %d", path, w.Code)
		}
	}
}

func TestRouterServesMetrics(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 but got %d", w.Code)
	}
}

func TestRouterWiresQueueAndStatus(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/queue", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("queue list: expected 200 but got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: expected 200 but got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/flush", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("flush: expected 202 but got %d", w.Code)
	}
}

func TestRouterUnknownRouteIs404(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 but got %d", w.Code)
	}
}
