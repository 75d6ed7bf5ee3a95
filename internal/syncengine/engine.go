package syncengine

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/quotedesk/fieldsync/internal/connectivity"
	"github.com/quotedesk/fieldsync/internal/transport"
	"github.com/quotedesk/fieldsync/pkg/db/models"
	"github.com/quotedesk/fieldsync/pkg/enums"
	pkgerrors "github.com/quotedesk/fieldsync/pkg/errors"
	"github.com/quotedesk/fieldsync/pkg/logger"
	"github.com/quotedesk/fieldsync/pkg/metrics"
	"github.com/quotedesk/fieldsync/pkg/session"
)

const defaultFlushInterval = 2 * time.Minute

// Trigger labels what started a flush pass.
type Trigger string

const (
	TriggerPromote      Trigger = "promote"
	TriggerConnectivity Trigger = "connectivity"
	TriggerTimer        Trigger = "timer"
	TriggerManual       Trigger = "manual"
)

type repository interface {
	Create(ctx context.Context, payload json.RawMessage, tenantID string) (models.QuoteRecord, error)
	List(ctx context.Context) ([]models.QuoteRecord, error)
	MarkSynced(ctx context.Context, id uuid.UUID, serverNumber string) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause string) error
}

type draftStore interface {
	Load(ctx context.Context) (*models.DraftSlot, error)
	Clear(ctx context.Context) error
}

type submitter interface {
	Submit(ctx context.Context, sess session.Context, record models.QuoteRecord) (*transport.Result, error)
}

type monitor interface {
	IsOnline() bool
	Subscribe() <-chan connectivity.Event
}

type sessions interface {
	Current() (session.Context, error)
}

type Params struct {
	Logger        *logger.Logger
	Repository    repository
	Drafts        draftStore
	Submitter     submitter
	Monitor       monitor
	Sessions      sessions
	Metrics       *metrics.SyncMetrics
	FlushInterval time.Duration
}

// Engine drains the local queue into the remote service. Flushes are
// sequential and oldest-first; only one flush pass runs at a time, and
// triggers arriving during a pass fold into a single follow-up pass.
type Engine struct {
	logg          *logger.Logger
	repo          repository
	drafts        draftStore
	submitter     submitter
	monitor       monitor
	sessions      sessions
	metrics       *metrics.SyncMetrics
	flushInterval time.Duration

	kick chan Trigger

	mu        sync.Mutex
	flushing  bool
	queued    bool
	lastFlush time.Time
}

func NewEngine(params Params) (*Engine, error) {
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, stdErrors.New("record repository is required")
	}
	if params.Drafts == nil {
		return nil, stdErrors.New("draft store is required")
	}
	if params.Submitter == nil {
		return nil, stdErrors.New("submitter is required")
	}
	if params.Monitor == nil {
		return nil, stdErrors.New("connectivity monitor is required")
	}
	if params.Sessions == nil {
		return nil, stdErrors.New("session provider is required")
	}

	interval := params.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}

	return &Engine{
		logg:          params.Logger,
		repo:          params.Repository,
		drafts:        params.Drafts,
		submitter:     params.Submitter,
		monitor:       params.Monitor,
		sessions:      params.Sessions,
		metrics:       params.Metrics,
		flushInterval: interval,
		kick:          make(chan Trigger, 1),
	}, nil
}

// Promote turns the draft slot into a pending queue record. The draft
// is cleared only after the record is durably queued, so a crash between
// the two steps leaves a duplicate draft rather than a lost quote.
func (e *Engine) Promote(ctx context.Context) (models.QuoteRecord, error) {
	sess, err := e.sessions.Current()
	if err != nil {
		return models.QuoteRecord{}, err
	}

	draft, err := e.drafts.Load(ctx)
	if err != nil {
		return models.QuoteRecord{}, err
	}
	if draft == nil {
		return models.QuoteRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "no draft to promote")
	}

	record, err := e.repo.Create(ctx, draft.Payload, sess.TenantID)
	if err != nil {
		return models.QuoteRecord{}, err
	}

	if err := e.drafts.Clear(ctx); err != nil {
		e.logg.Warn(e.logg.WithQuoteID(ctx, record.ID.String()), "draft not cleared after promotion")
	}

	if e.monitor.IsOnline() {
		e.TriggerFlush(TriggerPromote)
	}
	return record, nil
}

// TriggerFlush requests a flush pass without waiting for it. It never
// blocks: when a pass is already queued the trigger folds into it.
func (e *Engine) TriggerFlush(trigger Trigger) {
	select {
	case e.kick <- trigger:
	default:
	}
}

// Flush runs flush passes until the queue is quiet: if triggers arrive
// while a pass is running, one more pass follows. Concurrent callers
// while a pass runs mark it queued and return immediately.
func (e *Engine) Flush(ctx context.Context, trigger Trigger) error {
	e.mu.Lock()
	if e.flushing {
		e.queued = true
		e.mu.Unlock()
		return nil
	}
	e.flushing = true
	e.mu.Unlock()

	var err error
	for {
		err = e.runOnce(ctx, trigger)

		e.mu.Lock()
		e.lastFlush = time.Now()
		if !e.queued || ctx.Err() != nil {
			e.flushing = false
			e.mu.Unlock()
			return err
		}
		e.queued = false
		e.mu.Unlock()
	}
}

// runOnce performs one sequential pass over the unsynced records.
func (e *Engine) runOnce(ctx context.Context, trigger Trigger) error {
	started := time.Now()
	defer func() {
		e.metrics.ObserveFlushDuration(string(trigger), time.Since(started))
	}()

	sess, err := e.sessions.Current()
	if err != nil {
		e.logg.Warn(ctx, "flush skipped, no usable session")
		return err
	}

	records, err := e.repo.List(ctx)
	if err != nil {
		return err
	}
	e.reportQueueDepth(records)

	queue := records[:0:0]
	for _, record := range records {
		if record.Status.IsUnsynced() {
			queue = append(queue, record)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].LastModified.Before(queue[j].LastModified)
	})
	if len(queue) == 0 {
		return nil
	}

	e.logg.Info(
		e.logg.WithFields(ctx, map[string]any{"trigger": string(trigger), "queued": len(queue)}),
		"flushing quote queue",
	)

	var failures error
	for _, record := range queue {
		if ctx.Err() != nil {
			return multierr.Append(failures, ctx.Err())
		}
		if record.TenantID != sess.TenantID {
			e.logg.Warn(
				e.logg.WithFields(ctx, map[string]any{
					"quote_id":      record.ID.String(),
					"record_tenant": record.TenantID,
				}),
				"record belongs to another tenant, skipping",
			)
			continue
		}

		recordCtx := e.logg.WithQuoteID(ctx, record.ID.String())
		result, err := e.submitter.Submit(ctx, sess, record)
		if err == nil {
			if err := e.repo.MarkSynced(ctx, record.ID, result.ServerNumber); err != nil {
				// The remote accepted the quote but the confirmation did
				// not persist. Abort the pass: the record stays pending
				// and the idempotent resubmit reconciles it next flush.
				e.logg.Error(recordCtx, "synced record not persisted, aborting pass", err)
				return multierr.Append(failures, err)
			}
			e.metrics.IncSynced(string(trigger))
			e.logg.Info(e.logg.WithField(recordCtx, "server_number", result.ServerNumber), "quote synced")
			continue
		}

		switch transport.ClassOf(err) {
		case transport.FailureCanceled:
			return multierr.Append(failures, err)
		case transport.FailureTerminal:
			if markErr := e.repo.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
				e.logg.Error(recordCtx, "rejected record not persisted, aborting pass", markErr)
				return multierr.Append(failures, markErr)
			}
			e.metrics.IncFailed(string(trigger))
			e.logg.Warn(recordCtx, "quote rejected by remote service")
			failures = multierr.Append(failures, err)
		default:
			// Retries exhausted on a transient failure. The record keeps
			// its status and queue position for the next flush.
			e.logg.Warn(recordCtx, "quote submission deferred after transient failures")
			failures = multierr.Append(failures, err)
		}
	}
	return failures
}

func (e *Engine) reportQueueDepth(records []models.QuoteRecord) {
	counts := map[enums.QuoteStatus]int{}
	for _, record := range records {
		counts[record.Status]++
	}
	for _, status := range []enums.QuoteStatus{enums.QuoteStatusPending, enums.QuoteStatusFailed, enums.QuoteStatusSynced} {
		e.metrics.SetQueueDepth(status.String(), counts[status])
	}
}

// Status is a point-in-time snapshot for the inspector API.
type Status struct {
	Online    bool           `json:"online"`
	Counts    map[string]int `json:"counts"`
	LastFlush *time.Time     `json:"last_flush,omitempty"`
	Flushing  bool           `json:"flushing"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	records, err := e.repo.List(ctx)
	if err != nil {
		return Status{}, err
	}

	counts := map[string]int{}
	for _, record := range records {
		counts[record.Status.String()]++
	}

	e.mu.Lock()
	status := Status{
		Online:   e.monitor.IsOnline(),
		Counts:   counts,
		Flushing: e.flushing,
	}
	if !e.lastFlush.IsZero() {
		last := e.lastFlush
		status.LastFlush = &last
	}
	e.mu.Unlock()
	return status, nil
}

// Run drives flushes from connectivity transitions, the periodic timer
// and explicit triggers until the context is canceled. The timer pass
// runs regardless of the monitor's answer; the monitor is advisory and
// the transport settles reachability for real.
func (e *Engine) Run(ctx context.Context) error {
	events := e.monitor.Subscribe()
	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logg.Info(ctx, "sync engine context canceled")
			return ctx.Err()
		case event := <-events:
			if event != connectivity.EventRestored {
				continue
			}
			if err := e.Flush(ctx, TriggerConnectivity); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		case <-ticker.C:
			if err := e.Flush(ctx, TriggerTimer); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		case trigger := <-e.kick:
			if err := e.Flush(ctx, trigger); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
