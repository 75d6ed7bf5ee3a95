package connectivity

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/quotedesk/fieldsync/pkg/config"
	"github.com/quotedesk/fieldsync/pkg/logger"
)

// Event signals a reachability transition.
type Event string

const (
	EventRestored Event = "restored"
	EventLost     Event = "lost"
)

const defaultProbeInterval = 30 * time.Second

// ProbeFunc reports whether the remote endpoint is reachable right now.
type ProbeFunc func(ctx context.Context) bool

// Params configure the monitor.
type Params struct {
	Logger *logger.Logger
	Config config.ProbeConfig
	// FallbackURL is probed when no explicit probe URL is configured.
	FallbackURL string
	// Probe overrides the HTTP probe, for tests.
	Probe ProbeFunc
}

// Monitor watches reachability of the remote quote service and fans out
// transition events. Its answer is advisory: a submission can still fail
// while the monitor reports online, so the transport's verdict, not the
// monitor's, drives retry decisions.
type Monitor struct {
	logg     *logger.Logger
	probe    ProbeFunc
	interval time.Duration

	mu     sync.Mutex
	online bool
	primed bool
	subs   []chan Event
}

// NewMonitor builds a monitor. It starts pessimistic (offline) until
// the first probe answers.
func NewMonitor(params Params) (*Monitor, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}

	interval := params.Config.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	probe := params.Probe
	if probe == nil {
		url := params.Config.URL
		if url == "" {
			url = params.FallbackURL
		}
		if url == "" {
			return nil, errors.New("probe URL is required")
		}
		timeout := params.Config.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		probe = httpProbe(url, timeout)
	}

	return &Monitor{
		logg:     params.Logger,
		probe:    probe,
		interval: interval,
	}, nil
}

// httpProbe treats any completed HTTP exchange as reachable; even a 500
// proves the network path works, and that is all the monitor measures.
func httpProbe(url string, timeout time.Duration) ProbeFunc {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}

// IsOnline reports the last observed reachability state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel receiving transition events. Slow
// subscribers drop events rather than stalling the monitor.
func (m *Monitor) Subscribe() <-chan Event {
	ch := make(chan Event, 4)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Run probes immediately and then on the configured interval until the
// context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	m.observe(ctx, m.probe(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logg.Info(ctx, "connectivity monitor context canceled")
			return ctx.Err()
		case <-ticker.C:
			m.observe(ctx, m.probe(ctx))
		}
	}
}

// observe folds a probe result into the state, notifying on transition.
// The first successful probe counts as a restore so startup with
// connectivity triggers an initial flush.
func (m *Monitor) observe(ctx context.Context, online bool) {
	m.mu.Lock()
	transition := !m.primed && online || m.primed && online != m.online
	m.primed = true
	m.online = online
	var subs []chan Event
	if transition {
		subs = append(subs, m.subs...)
	}
	m.mu.Unlock()

	if !transition {
		return
	}

	event := EventLost
	if online {
		event = EventRestored
	}
	m.logg.Info(m.logg.WithField(ctx, "event", string(event)), "connectivity changed")

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}
