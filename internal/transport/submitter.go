package transport

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/quotedesk/fieldsync/pkg/config"
	"github.com/quotedesk/fieldsync/pkg/db/models"
	"github.com/quotedesk/fieldsync/pkg/logger"
	"github.com/quotedesk/fieldsync/pkg/metrics"
	"github.com/quotedesk/fieldsync/pkg/session"
)

// FailureClass partitions submission failures by what the caller should
// do next. Retryable failures leave the record pending for a later
// flush, terminal ones mark it failed, canceled ones change nothing.
type FailureClass string

const (
	FailureRetryable FailureClass = "retryable"
	FailureTerminal  FailureClass = "terminal"
	FailureCanceled  FailureClass = "canceled"
)

// SubmitError carries the failure class alongside the underlying cause.
type SubmitError struct {
	Class      FailureClass
	StatusCode int
	cause      error
}

func (e *SubmitError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("submit %s: status %d: %v", e.Class, e.StatusCode, e.cause)
	}
	return fmt.Sprintf("submit %s: %v", e.Class, e.cause)
}

func (e *SubmitError) Unwrap() error {
	return e.cause
}

// ClassOf extracts the failure class from a submission error. Unknown
// errors are treated as retryable so a transient local fault never
// terminally fails a record.
func ClassOf(err error) FailureClass {
	var typed *SubmitError
	if stdErrors.As(err, &typed) {
		return typed.Class
	}
	return FailureRetryable
}

// Result is a confirmed submission.
type Result struct {
	ServerNumber string
}

// Params configure the submitter.
type Params struct {
	Logger  *logger.Logger
	Config  config.RemoteConfig
	Metrics *metrics.SyncMetrics
	// Client overrides the HTTP client, for tests. Timeouts are applied
	// per attempt through the request context, not on the client.
	Client *http.Client
}

// Submitter pushes one quote record to the remote service, retrying
// transient failures with a bounded backoff before giving up. Retries
// happen inside a single Submit call; the caller sees only the final
// verdict.
type Submitter struct {
	logg    *logger.Logger
	cfg     config.RemoteConfig
	metrics *metrics.SyncMetrics
	client  *http.Client
}

func NewSubmitter(params Params) (*Submitter, error) {
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	if strings.TrimSpace(params.Config.BaseURL) == "" {
		return nil, stdErrors.New("remote base URL is required")
	}

	cfg := params.Config
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 10 * time.Second
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	client := params.Client
	if client == nil {
		client = &http.Client{}
	}

	return &Submitter{
		logg:    params.Logger,
		cfg:     cfg,
		metrics: params.Metrics,
		client:  client,
	}, nil
}

// submitRequest is the wire shape of a quote submission. ClientReference
// doubles as the idempotency token: the remote service deduplicates on
// it, so a retry after a lost response cannot create a second quote.
type submitRequest struct {
	ClientReference string          `json:"client_reference"`
	TenantID        string          `json:"tenant_id"`
	Quote           json.RawMessage `json:"quote"`
}

type submitResponse struct {
	QuoteNumber string `json:"quote_number"`
}

// Submit sends the record and returns the server-assigned quote number.
// Failures come back as a *SubmitError whose class tells the caller how
// to treat the record.
func (s *Submitter) Submit(ctx context.Context, sess session.Context, record models.QuoteRecord) (*Result, error) {
	body, err := json.Marshal(submitRequest{
		ClientReference: record.ID.String(),
		TenantID:        sess.TenantID,
		Quote:           record.Payload,
	})
	if err != nil {
		return nil, &SubmitError{Class: FailureTerminal, cause: fmt.Errorf("encoding submission: %w", err)}
	}

	backoff := retry.WithCappedDuration(s.cfg.RetryMaxDelay,
		retry.WithMaxRetries(uint64(s.cfg.MaxRetries),
			retry.NewExponential(s.cfg.RetryBaseDelay)))

	attempt := 0
	var result *Result
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		res, attemptErr := s.attempt(ctx, sess, record, body)
		if attemptErr == nil {
			s.metrics.IncAttempt("success")
			result = res
			return nil
		}

		var typed *SubmitError
		if !stdErrors.As(attemptErr, &typed) {
			typed = &SubmitError{Class: FailureRetryable, cause: attemptErr}
		}
		s.metrics.IncAttempt(string(typed.Class))
		s.logg.Warn(
			s.logg.WithFields(ctx, map[string]any{
				"quote_id": record.ID.String(),
				"attempt":  attempt,
				"class":    string(typed.Class),
				"error":    attemptErr.Error(),
			}),
			"quote submission attempt failed",
		)

		if typed.Class == FailureRetryable {
			return retry.RetryableError(typed)
		}
		return typed
	})
	if err != nil {
		// A canceled parent context surfaces as the bare context error
		// when retry.Do gives up between attempts.
		if ctx.Err() != nil {
			return nil, &SubmitError{Class: FailureCanceled, cause: ctx.Err()}
		}
		var typed *SubmitError
		if stdErrors.As(err, &typed) {
			return nil, typed
		}
		return nil, &SubmitError{Class: FailureRetryable, cause: err}
	}
	return result, nil
}

func (s *Submitter) attempt(ctx context.Context, sess session.Context, record models.QuoteRecord, body []byte) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/quotes"
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &SubmitError{Class: FailureTerminal, cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	req.Header.Set("X-Client-Reference", record.ID.String())

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &SubmitError{Class: FailureCanceled, cause: ctx.Err()}
		}
		return nil, &SubmitError{Class: FailureRetryable, cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var decoded submitResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, &SubmitError{Class: FailureRetryable, StatusCode: resp.StatusCode, cause: fmt.Errorf("decoding response: %w", err)}
		}
		if decoded.QuoteNumber == "" {
			return nil, &SubmitError{Class: FailureRetryable, StatusCode: resp.StatusCode, cause: stdErrors.New("response missing quote number")}
		}
		return &Result{ServerNumber: decoded.QuoteNumber}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &SubmitError{Class: FailureTerminal, StatusCode: resp.StatusCode, cause: readRemoteError(resp.Body)}
	default:
		return nil, &SubmitError{Class: FailureRetryable, StatusCode: resp.StatusCode, cause: readRemoteError(resp.Body)}
	}
}

// readRemoteError keeps a short slice of the response body for logs.
func readRemoteError(body io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil || len(raw) == 0 {
		return stdErrors.New("remote service rejected the submission")
	}
	return fmt.Errorf("remote service rejected the submission: %s", strings.TrimSpace(string(raw)))
}
