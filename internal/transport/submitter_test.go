package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotedesk/fieldsync/pkg/config"
	"github.com/quotedesk/fieldsync/pkg/db/models"
	"github.com/quotedesk/fieldsync/pkg/logger"
	"github.com/quotedesk/fieldsync/pkg/session"
)

func newTestSubmitter(t *testing.T, baseURL string) *Submitter {
	t.Helper()

	submitter, err := NewSubmitter(Params{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Config: config.RemoteConfig{
			BaseURL:        baseURL,
			SubmitTimeout:  2 * time.Second,
			RetryBaseDelay: time.Millisecond,
			RetryMaxDelay:  2 * time.Millisecond,
			MaxRetries:     2,
		},
	})
	require.NoError(t, err)
	return submitter
}

func testRecord(t *testing.T) models.QuoteRecord {
	t.Helper()
	return models.QuoteRecord{
		ID:      uuid.New(),
		Payload: json.RawMessage(`{"customer_ref":"ACME"}`),
	}
}

func testSession() session.Context {
	return session.Context{TenantID: "tenant-1", UserID: "user-1", Token: "token-abc"}
}

func TestNewSubmitterRequiresBaseURL(t *testing.T) {
	_, err := NewSubmitter(Params{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.Error(t, err)
}

func TestSubmitSuccess(t *testing.T) {
	record := testRecord(t)

	var captured submitRequest
	var gotAuth, gotReference string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReference = r.Header.Get("X-Client-Reference")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"quote_number":"Q-4821"}`))
	}))
	defer server.Close()

	submitter := newTestSubmitter(t, server.URL)
	result, err := submitter.Submit(context.Background(), testSession(), record)

	require.NoError(t, err)
	assert.Equal(t, "Q-4821", result.ServerNumber)
	assert.Equal(t, "Bearer token-abc", gotAuth)
	assert.Equal(t, record.ID.String(), gotReference)
	assert.Equal(t, record.ID.String(), captured.ClientReference)
	assert.Equal(t, "tenant-1", captured.TenantID)
	assert.JSONEq(t, string(record.Payload), string(captured.Quote))
}

func TestSubmitRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"quote_number":"Q-77"}`))
	}))
	defer server.Close()

	submitter := newTestSubmitter(t, server.URL)
	result, err := submitter.Submit(context.Background(), testSession(), testRecord(t))

	require.NoError(t, err)
	assert.Equal(t, "Q-77", result.ServerNumber)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSubmitExhaustsRetriesOnPersistentServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	submitter := newTestSubmitter(t, server.URL)
	_, err := submitter.Submit(context.Background(), testSession(), testRecord(t))

	require.Error(t, err)
	assert.Equal(t, FailureRetryable, ClassOf(err))
	// One initial attempt plus two retries.
	assert.Equal(t, int32(3), calls.Load())
}

func TestSubmitRejectionIsTerminalWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"discount exceeds limit"}`))
	}))
	defer server.Close()

	submitter := newTestSubmitter(t, server.URL)
	_, err := submitter.Submit(context.Background(), testSession(), testRecord(t))

	require.Error(t, err)
	assert.Equal(t, FailureTerminal, ClassOf(err))
	assert.Contains(t, err.Error(), "discount exceeds limit")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmitNetworkErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	submitter := newTestSubmitter(t, server.URL)
	_, err := submitter.Submit(context.Background(), testSession(), testRecord(t))

	require.Error(t, err)
	assert.Equal(t, FailureRetryable, ClassOf(err))
}

func TestSubmitCanceledContextIsNeutral(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect;
		// otherwise r.Context() never fires and Close deadlocks.
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	submitter := newTestSubmitter(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := submitter.Submit(ctx, testSession(), testRecord(t))

	require.Error(t, err)
	assert.Equal(t, FailureCanceled, ClassOf(err))
}

func TestSubmitMalformedSuccessBodyIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	submitter := newTestSubmitter(t, server.URL)
	_, err := submitter.Submit(context.Background(), testSession(), testRecord(t))

	require.Error(t, err)
	assert.Equal(t, FailureRetryable, ClassOf(err))
}

func TestClassOfPlainErrorDefaultsToRetryable(t *testing.T) {
	assert.Equal(t, FailureRetryable, ClassOf(assert.AnError))
}
