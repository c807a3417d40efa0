package hxhydrate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/pthm/hxhydrate/lib/logging"
)

// Options configures a Manager. Zero fields take the values of
// DefaultOptions.
type Options struct {
	// ReservedPrefix marks tags the scheduler discovers on its own.
	ReservedPrefix string
	// MaxConcurrent bounds concurrent element activations.
	MaxConcurrent int
	// BatchSize is the chunk size of HydrateComponents.
	BatchSize int
	// RetryBaseDelay is the first backoff delay; attempt n waits base*2^n.
	RetryBaseDelay time.Duration
	// DiscoveryDelay batches inserted elements before scheduling them.
	DiscoveryDelay time.Duration
	// NetworkPollInterval is the poll period of the network strategy.
	NetworkPollInterval time.Duration
	// LazyFallbackDelay replaces idle callbacks when none are available.
	LazyFallbackDelay time.Duration
	// ConditionRecheck re-evaluates deferred tags on this interval and
	// resubmits them once their conditions hold. Zero disables rechecks.
	ConditionRecheck time.Duration
	// DefaultStrategy is used by AutoHydrate for elements without a
	// data-hydrate-strategy attribute.
	DefaultStrategy Strategy
	// DisableMutationWatch turns off discovery of inserted elements.
	DisableMutationWatch bool

	Logger    logging.Logger
	Analytics AnalyticsSink
}

// DefaultOptions returns the stock scheduler settings.
func DefaultOptions() Options {
	return Options{
		ReservedPrefix:      "fluent-",
		MaxConcurrent:       6,
		BatchSize:           5,
		RetryBaseDelay:      time.Second,
		DiscoveryDelay:      100 * time.Millisecond,
		NetworkPollInterval: 5 * time.Second,
		LazyFallbackDelay:   100 * time.Millisecond,
		DefaultStrategy:     StrategyViewport,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReservedPrefix == "" {
		o.ReservedPrefix = d.ReservedPrefix
	}
	if o.MaxConcurrent == 0 {
		o.MaxConcurrent = d.MaxConcurrent
	}
	if o.BatchSize == 0 {
		o.BatchSize = d.BatchSize
	}
	if o.RetryBaseDelay == 0 {
		o.RetryBaseDelay = d.RetryBaseDelay
	}
	if o.DiscoveryDelay == 0 {
		o.DiscoveryDelay = d.DiscoveryDelay
	}
	if o.NetworkPollInterval == 0 {
		o.NetworkPollInterval = d.NetworkPollInterval
	}
	if o.LazyFallbackDelay == 0 {
		o.LazyFallbackDelay = d.LazyFallbackDelay
	}
	if o.DefaultStrategy == "" {
		o.DefaultStrategy = d.DefaultStrategy
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

// Validate reports settings that cannot work.
func (o Options) Validate() error {
	if o.MaxConcurrent < 0 {
		return fmt.Errorf("%w: MaxConcurrent must not be negative, got %d", ErrInvalidConfig, o.MaxConcurrent)
	}
	if o.BatchSize < 0 {
		return fmt.Errorf("%w: BatchSize must not be negative, got %d", ErrInvalidConfig, o.BatchSize)
	}
	if o.RetryBaseDelay < 0 || o.DiscoveryDelay < 0 || o.NetworkPollInterval < 0 ||
		o.LazyFallbackDelay < 0 || o.ConditionRecheck < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if o.DefaultStrategy != "" && !o.DefaultStrategy.Valid() {
		return fmt.Errorf("%w: default strategy %q", ErrUnknownStrategy, o.DefaultStrategy)
	}
	return nil
}

// AnalyticsEvent is the terminal outcome of an activation that asked for
// analytics.
type AnalyticsEvent struct {
	Manager  string
	Tag      string
	Strategy Strategy
	Status   Status
	Attempts int
	Duration time.Duration
	Err      error
}

// AnalyticsSink receives analytics events.
type AnalyticsSink interface {
	Track(AnalyticsEvent)
}

// AnalyticsFunc adapts a function to AnalyticsSink.
type AnalyticsFunc func(AnalyticsEvent)

// Track calls f.
func (f AnalyticsFunc) Track(ev AnalyticsEvent) { f(ev) }

// Manager schedules the activation of DOM-backed components. All state
// lives on the instance; independent managers may coexist over the same
// environment.
type Manager struct {
	id   string
	env  Environment
	opts Options
	log  logging.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	gate     *semaphore.Weighted
	inflight atomic.Int64
	wg       sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	rechecking bool
	states     map[string]*ComponentState
	pending    map[string]*Activation
	configs    map[string]Config
	deferred   map[string]Config
	counted    map[Element]struct{}
	claimed    map[Element]struct{}
	metrics    Metrics

	durations *durations
	bridge    *bridge
}

// New creates a manager over env.
func New(env Environment, opts Options) (*Manager, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		id:        uuid.NewString(),
		env:       env,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		gate:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		states:    make(map[string]*ComponentState),
		pending:   make(map[string]*Activation),
		configs:   make(map[string]Config),
		deferred:  make(map[string]Config),
		counted:   make(map[Element]struct{}),
		claimed:   make(map[Element]struct{}),
		durations: newDurations(),
	}
	m.log = opts.Logger.With(logging.String("manager", m.id))
	m.bridge = newBridge(m)

	if env.Document != nil && !opts.DisableMutationWatch {
		m.bridge.watchInsertions(env.Document)
	}
	return m, nil
}

// ID returns the manager's unique identifier.
func (m *Manager) ID() string { return m.id }

// HydrateComponent requests activation of every element of tag. Requests
// for a tag already in flight return the in-flight Activation; requests
// for a hydrated tag resolve immediately without running a strategy.
func (m *Manager) HydrateComponent(tag string, cfg Config) *Activation {
	return m.submit(tag, cfg, false)
}

func (m *Manager) submit(tag string, cfg Config, force bool) *Activation {
	tag = strings.ToLower(strings.TrimSpace(tag))
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return resolved(tag, cfg.Strategy, StatusError, &HydrationError{Kind: KindConfig, Tag: tag, Strategy: cfg.Strategy, Err: err})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return resolved(tag, cfg.Strategy, StatusError, ErrClosed)
	}
	if a, ok := m.pending[tag]; ok {
		return a
	}

	st, ok := m.states[tag]
	if !ok {
		st = &ComponentState{Tag: tag, Status: StatusPending}
		m.states[tag] = st
	}
	switch st.Status {
	case StatusHydrated:
		return resolved(tag, st.Strategy, StatusHydrated, nil)
	case StatusError:
		return resolved(tag, st.Strategy, StatusError, st.err)
	}

	st.Strategy = cfg.Strategy
	st.Priority = cfg.Priority
	st.MaxRetries = cfg.Retries
	st.StartTime = time.Now()
	m.configs[tag] = cfg

	if !force && !satisfies(m.env, cfg.Conditions, cfg.Strategy) {
		m.deferred[tag] = cfg
		m.log.Info("conditions unmet, deferring activation",
			logging.String("tag", tag), logging.String("strategy", string(cfg.Strategy)))
		m.startRecheckLocked()
		return resolved(tag, cfg.Strategy, StatusPending, nil)
	}
	delete(m.deferred, tag)

	a := newActivation(tag, cfg.Strategy)
	var ctx context.Context
	if cfg.Timeout > 0 {
		ctx, a.cancel = context.WithTimeout(m.ctx, cfg.Timeout)
	} else {
		ctx, a.cancel = context.WithCancel(m.ctx)
	}
	m.pending[tag] = a

	m.wg.Add(1)
	go m.run(ctx, a, cfg)
	return a
}

// GetMetrics returns a snapshot of the aggregate metrics.
func (m *Manager) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics.derive()
}

// GetComponentStates returns a copy of every per-tag record.
func (m *Manager) GetComponentStates() map[string]ComponentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]ComponentState, len(m.states))
	for tag, st := range m.states {
		out[tag] = *st
	}
	return out
}

// State returns the record of one tag.
func (m *Manager) State(tag string) (ComponentState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[strings.ToLower(tag)]
	if !ok {
		return ComponentState{}, false
	}
	return *st, true
}

// Durations returns the measurements collected per "hydrate:<tag>" name.
func (m *Manager) Durations() []DurationStat {
	return m.durations.snapshot()
}

// InFlight returns the number of strategy attempts currently running.
func (m *Manager) InFlight() int {
	return int(m.inflight.Load())
}

// PauseHydration disconnects every visibility observer and stops the
// discovery batch timer. Activations already in flight keep running.
func (m *Manager) PauseHydration() {
	m.bridge.pause()
	m.log.Debug("hydration paused")
}

// ResumeHydration reconnects visibility observers for every outstanding
// viewport wait and restarts discovery of queued insertions.
func (m *Manager) ResumeHydration() {
	m.bridge.resume()
	m.log.Debug("hydration resumed")
}

// ForceHydrateAll activates everything that is still waiting. Pending tags
// are resubmitted with the immediate strategy, bypassing their conditions;
// in-flight waits are told to activate their remaining elements now.
func (m *Manager) ForceHydrateAll() []*Activation {
	m.mu.Lock()
	var waiting []*Activation
	var resubmit []Request
	for tag, st := range m.states {
		if a, ok := m.pending[tag]; ok {
			waiting = append(waiting, a)
			continue
		}
		if st.Status == StatusPending {
			cfg := m.configs[tag]
			cfg.Strategy = StrategyImmediate
			cfg.Timeout = 0
			resubmit = append(resubmit, Request{Tag: tag, Config: cfg})
		}
	}
	m.mu.Unlock()

	out := make([]*Activation, 0, len(waiting)+len(resubmit))
	for _, a := range waiting {
		a.force()
		out = append(out, a)
	}
	for _, r := range resubmit {
		out = append(out, m.submit(r.Tag, r.Config, true))
	}
	return out
}

// Cleanup cancels every activation, disconnects every observer and clears
// all state. The manager cannot be used afterwards.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.bridge.close()
	m.wg.Wait()

	m.mu.Lock()
	m.states = make(map[string]*ComponentState)
	m.pending = make(map[string]*Activation)
	m.configs = make(map[string]Config)
	m.deferred = make(map[string]Config)
	m.counted = make(map[Element]struct{})
	m.claimed = make(map[Element]struct{})
	m.metrics = Metrics{}
	m.mu.Unlock()
	m.durations.reset()
	m.log.Debug("manager cleaned up")
}

// transition moves tag to status if the lifecycle allows it.
func (m *Manager) transition(tag string, to Status, retry bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[tag]
	if !ok {
		return false
	}
	if !canTransition(st.Status, to, retry) {
		m.log.Debug("ignoring illegal transition",
			logging.String("tag", tag), logging.String("from", string(st.Status)), logging.String("to", string(to)))
		return false
	}
	st.Status = to
	return true
}

// startRecheckLocked starts the deferred-condition loop once. m.mu is held.
func (m *Manager) startRecheckLocked() {
	if m.opts.ConditionRecheck <= 0 || m.rechecking {
		return
	}
	m.rechecking = true
	m.wg.Add(1)
	go m.recheckLoop()
}

func (m *Manager) recheckLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.ConditionRecheck)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		ready := make([]Request, 0, len(m.deferred))
		for tag, cfg := range m.deferred {
			if satisfies(m.env, cfg.Conditions, cfg.Strategy) {
				ready = append(ready, Request{Tag: tag, Config: cfg})
			}
		}
		m.mu.Unlock()

		for _, r := range ready {
			m.log.Info("conditions now met, resubmitting", logging.String("tag", r.Tag))
			m.HydrateComponent(r.Tag, r.Config)
		}
	}
}
