package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/insaansher/sherpos-terminal/pkg/logger"
	"github.com/insaansher/sherpos-terminal/pkg/metrics"
)

// State is the monitor's binary reachability verdict.
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// Observer receives edge-triggered transition notifications. Notification is
// strictly one-way; no acknowledgment is expected.
type Observer func(State)

// Prober is a lightweight reachability check against the backend.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor tracks backend reachability as a two-state machine. It probes on a
// fixed interval (the polling fallback for platforms without push-style
// reachability events) and also accepts pushed platform signals via Report.
// A probe success is a hint, not a guarantee: callers still handle request
// failures while nominally online.
type Monitor struct {
	mu        sync.Mutex
	state     State
	observers []Observer

	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logg     *logger.Logger
	metrics  *metrics.TerminalMetrics
}

type MonitorParams struct {
	Prober   Prober
	Interval time.Duration
	Timeout  time.Duration
	Logger   *logger.Logger
	Metrics  *metrics.TerminalMetrics
}

func NewMonitor(params MonitorParams) (*Monitor, error) {
	if params.Prober == nil {
		return nil, errors.New("prober is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Interval <= 0 {
		params.Interval = 15 * time.Second
	}
	if params.Timeout <= 0 {
		params.Timeout = 3 * time.Second
	}
	return &Monitor{
		// Optimistic until the first probe says otherwise; the dispatcher
		// handles request failures either way.
		state:    StateOnline,
		prober:   params.Prober,
		interval: params.Interval,
		timeout:  params.Timeout,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Online reports whether the terminal currently considers the backend
// reachable.
func (m *Monitor) Online() bool {
	return m.State() == StateOnline
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers an observer for transition events. Observers are
// invoked synchronously, in registration order, with the new state.
func (m *Monitor) Subscribe(observer Observer) {
	if observer == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, observer)
}

// Report feeds a reachability signal into the machine. Only transitions
// notify; repeated same-state reports are absorbed.
func (m *Monitor) Report(online bool) {
	next := StateOffline
	if online {
		next = StateOnline
	}

	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	m.metrics.SetOnline(online)
	m.logg.Info(m.logg.WithField(context.Background(), "state", string(next)),
		"connectivity changed")
	for _, observer := range observers {
		observer(next)
	}
}

// Start seeds the state with an immediate probe, then probes on the
// configured interval until the context ends. The initial probe sets state
// without notifying; only subsequent transitions do.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.state = m.probeState(ctx)
	initial := m.state
	m.mu.Unlock()
	m.metrics.SetOnline(initial == StateOnline)
	m.logg.Info(m.logg.WithField(ctx, "state", string(initial)), "connectivity monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Report(m.probeState(ctx) == StateOnline)
		}
	}
}

func (m *Monitor) probeState(ctx context.Context) State {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.prober.Ping(probeCtx); err != nil {
		return StateOffline
	}
	return StateOnline
}
