package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quotedesk/fieldsync/pkg/db/models"
	"github.com/quotedesk/fieldsync/pkg/enums"
)

type testDraftStore struct {
	slot    *models.DraftSlot
	saveFn  func(ctx context.Context, payload json.RawMessage) error
	clearFn func(ctx context.Context) error
}

func (s *testDraftStore) Save(ctx context.Context, payload json.RawMessage) error {
	if s.saveFn != nil {
		return s.saveFn(ctx, payload)
	}
	s.slot = &models.DraftSlot{Payload: payload, SavedAt: time.Now().UTC()}
	return nil
}

func (s *testDraftStore) Load(context.Context) (*models.DraftSlot, error) {
	return s.slot, nil
}

func (s *testDraftStore) Clear(ctx context.Context) error {
	if s.clearFn != nil {
		return s.clearFn(ctx)
	}
	s.slot = nil
	return nil
}

type testPromoter struct {
	promoteFn func(ctx context.Context) (models.QuoteRecord, error)
}

func (p *testPromoter) Promote(ctx context.Context) (models.QuoteRecord, error) {
	if p.promoteFn != nil {
		return p.promoteFn(ctx)
	}
	return models.QuoteRecord{}, nil
}

const completeDraft = `{"customer_ref":"acme","items":[{"product_ref":"p1","quantity":2,"unit_price":"19.99","line_total":"39.98"}],"subtotal":"39.98","total":"39.98"}`

func TestDraftSaveAcceptsPartialPayload(t *testing.T) {
	store := &testDraftStore{}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/draft", strings.NewReader(`{"customer_ref":"acme"}`))
	DraftSave(store, testLogger())(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 but got %d", w.Code)
	}
	if store.slot == nil {
		t.Fatalf("expected draft slot to be written")
	}
}

func TestDraftSaveRejectsMalformedJSON(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/draft", strings.NewReader(`{nope`))
	DraftSave(&testDraftStore{}, testLogger())(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 but got %d", w.Code)
	}
}

func TestDraftFetchEmptySlotIsNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	DraftFetch(&testDraftStore{}, testLogger())(w, httptest.NewRequest(http.MethodGet, "/v1/draft", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 but got %d", w.Code)
	}
}

func TestDraftPromoteValidatesCompleteness(t *testing.T) {
	store := &testDraftStore{slot: &models.DraftSlot{Payload: json.RawMessage(`{"customer_ref":"acme"}`)}}
	promoter := &testPromoter{
		promoteFn: func(context.Context) (models.QuoteRecord, error) {
			t.Fatal("incomplete draft must not reach the engine")
			return models.QuoteRecord{}, nil
		},
	}

	w := httptest.NewRecorder()
	DraftPromote(store, promoter, testLogger())(w, httptest.NewRequest(http.MethodPost, "/v1/draft/promote", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 but got %d", w.Code)
	}
}

func TestDraftPromoteQueuesCompleteDraft(t *testing.T) {
	store := &testDraftStore{slot: &models.DraftSlot{Payload: json.RawMessage(completeDraft)}}
	record := models.QuoteRecord{ID: uuid.New(), Status: enums.QuoteStatusPending}
	promoter := &testPromoter{
		promoteFn: func(context.Context) (models.QuoteRecord, error) {
			return record, nil
		},
	}

	w := httptest.NewRecorder()
	DraftPromote(store, promoter, testLogger())(w, httptest.NewRequest(http.MethodPost, "/v1/draft/promote", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 but got %d", w.Code)
	}
	var body struct {
		Data models.QuoteRecord `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Data.ID != record.ID {
		t.Fatalf("expected promoted record in response")
	}
}

func TestDraftPromoteEmptySlotIsNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	DraftPromote(&testDraftStore{}, &testPromoter{}, testLogger())(w, httptest.NewRequest(http.MethodPost, "/v1/draft/promote", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 but got %d", w.Code)
	}
}
