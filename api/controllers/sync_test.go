package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quotedesk/fieldsync/internal/syncengine"
)

type testSyncEngine struct {
	triggers []syncengine.Trigger
	status   syncengine.Status
	err      error
}

func (e *testSyncEngine) TriggerFlush(trigger syncengine.Trigger) {
	e.triggers = append(e.triggers, trigger)
}

func (e *testSyncEngine) Status(context.Context) (syncengine.Status, error) {
	return e.status, e.err
}

func TestSyncFlushIsNonBlocking(t *testing.T) {
	engine := &testSyncEngine{}
	w := httptest.NewRecorder()
	SyncFlush(engine, testLogger())(w, httptest.NewRequest(http.MethodPost, "/v1/flush", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 but got %d", w.Code)
	}
	if len(engine.triggers) != 1 || engine.triggers[0] != syncengine.TriggerManual {
		t.Fatalf("expected one manual trigger, got %v", engine.triggers)
	}
}

func TestSyncStatusReportsSnapshot(t *testing.T) {
	engine := &testSyncEngine{
		status: syncengine.Status{
			Online: true,
			Counts: map[string]int{"pending": 2, "synced": 5},
		},
	}

	w := httptest.NewRecorder()
	SyncStatus(engine, testLogger())(w, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 but got %d", w.Code)
	}
	var body struct {
		Data syncengine.Status `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !body.Data.Online || body.Data.Counts["pending"] != 2 {
		t.Fatalf("unexpected status %+v", body.Data)
	}
}
