// Package reconcile keeps the visibility of open conversations in line with
// their retention counts.
//
// A Driver turns host events (append, delete, bulk load, setting change,
// conversation switch) into reconciliation passes. Each pass picks the
// incremental or the full strategy, writes the resulting transitions onto
// the conversation's sequence, refreshes the presentation once, persists the
// new cache and asks the host to save. Passes are serialized across all
// conversations.
//
//	d, err := reconcile.New(&cfg, reconcile.WithPresenter(ui))
//	conv, _, err := d.Open(ctx, chatID, seq)
//	seq.AddMessage(msg)
//	d.Notify(conv, reconcile.TriggerAppended)
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tailored-agentic-units/retention/compute"
	"github.com/tailored-agentic-units/retention/observability"
	"github.com/tailored-agentic-units/retention/retention"
	"github.com/tailored-agentic-units/retention/session"
	"github.com/tailored-agentic-units/retention/settings"
)

// Result describes one reconciliation pass.
type Result struct {
	PassID      string                 `json:"pass_id"`
	Trigger     Trigger                `json:"trigger"`
	Strategy    Strategy               `json:"strategy"`
	Provider    string                 `json:"provider,omitempty"`
	Transitions []retention.Transition `json:"transitions,omitempty"`
	Affected    []int                  `json:"affected,omitempty"` // Positions actually written.
	Overrides   int                    `json:"overrides"`
	Fallback    string                 `json:"fallback,omitempty"` // Why an append ran the full strategy.
	Duration    time.Duration          `json:"duration"`
}

// Option configures a Driver after config-driven initialization.
type Option func(*Driver)

// WithPresenter sets the presentation layer. The default discards refreshes.
func WithPresenter(p Presenter) Option {
	return func(d *Driver) { d.presenter = p }
}

// WithPersister sets the host's save hook. The default does nothing.
func WithPersister(p Persister) Option {
	return func(d *Driver) { d.persister = p }
}

// WithProvider overrides the config-created compute provider.
func WithProvider(p compute.Provider) Option {
	return func(d *Driver) { d.provider = p }
}

// WithStore overrides the config-created settings store. The driver does
// not close a store it was given.
func WithStore(s settings.Store) Option {
	return func(d *Driver) { d.store = s }
}

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(d *Driver) { d.observer = o }
}

type pendingPass struct {
	trigger Trigger
	timer   *time.Timer
}

// Driver runs reconciliation passes. All methods are safe for concurrent use.
type Driver struct {
	provider  compute.Provider
	store     settings.Store
	ownsStore bool
	settings  *settings.Cache
	presenter Presenter
	persister Persister
	observer  observability.Observer
	debounce  time.Duration
	sem       *semaphore.Weighted

	mu       sync.Mutex
	pending  map[*Conversation]*pendingPass
	inflight sync.WaitGroup
	closed   bool
}

// New creates a Driver from configuration. The settings store and compute
// provider are created from their config sections unless overridden by
// options.
func New(cfg *Config, opts ...Option) (*Driver, error) {
	d := &Driver{
		presenter: noopPresenter{},
		persister: noopPersister{},
		debounce:  cfg.Debounce.Std(),
		sem:       semaphore.NewWeighted(1),
		pending:   make(map[*Conversation]*pendingPass),
	}
	if d.debounce <= 0 {
		d.debounce = defaultDebounce
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.observer == nil {
		if cfg.Observer == "" {
			d.observer = observability.NewSlogObserver(slog.Default())
		} else {
			obs, err := observability.GetObserver(cfg.Observer)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve observer: %w", err)
			}
			d.observer = obs
		}
	}

	if d.store == nil {
		store, err := settings.NewStore(&cfg.Settings, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create settings store: %w", err)
		}
		d.store = store
		d.ownsStore = true
	}

	if d.provider == nil {
		provider, err := compute.New(&cfg.Compute, d.observer)
		if err != nil {
			if d.ownsStore {
				d.store.Close()
			}
			return nil, fmt.Errorf("failed to create compute provider: %w", err)
		}
		d.provider = provider
	}

	d.settings = settings.NewCache(d.store)
	return d, nil
}

// Settings returns the driver's settings cache.
func (d *Driver) Settings() *settings.Cache {
	return d.settings
}

// Open makes seq the active sequence of conversation id. It loads the
// conversation's persisted retention count, starts from an empty cache and
// runs a full pass.
func (d *Driver) Open(ctx context.Context, id string, seq session.Session) (*Conversation, *Result, error) {
	conv := &Conversation{id: id, seq: seq}
	res, err := d.Handle(ctx, conv, TriggerConversationChanged)
	return conv, res, err
}

// Handle runs one reconciliation pass for trigger and waits for it. A pass
// already running for any conversation finishes first. Once started, a
// pass is not cancelled by ctx.
func (d *Driver) Handle(ctx context.Context, conv *Conversation, trigger Trigger) (*Result, error) {
	if !trigger.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTrigger, int(trigger))
	}
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	ctx = context.WithoutCancel(ctx)
	if trigger == TriggerConversationChanged {
		if err := d.load(ctx, conv); err != nil {
			return nil, err
		}
	}
	return d.reconcile(ctx, conv, trigger)
}

// SetRetention validates n, makes it the conversation's retention count and
// runs a full pass. An invalid n leaves the previous count in place and runs
// nothing.
func (d *Driver) SetRetention(ctx context.Context, conv *Conversation, n int) (*Result, error) {
	if err := retention.ValidateRetention(n); err != nil {
		return nil, err
	}
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	ctx = context.WithoutCancel(ctx)
	previous := conv.Setting()
	conv.setN(n)

	d.observer.OnEvent(ctx, observability.Event{
		Type:      EventSettingChanged,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "reconcile.SetRetention",
		Data: map[string]any{
			"conversation": conv.id,
			"previous":     previous,
			"n":            n,
		},
	})

	return d.reconcile(ctx, conv, TriggerSettingChanged)
}

// ApplyRange enforces the retention partition with the sequence's bulk range
// primitive instead of a diff: every message is shown, then every
// unprotected message before the visible window is hidden. Manual overrides
// are not preserved.
func (d *Driver) ApplyRange(ctx context.Context, conv *Conversation) (*Result, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	n, _, _ := conv.state()

	before := retention.Project(conv.seq)
	length := len(before)
	visibleStart := retention.VisibleStart(length, n)

	target := make([]bool, length)
	for i := range visibleStart {
		target[i] = !before.Protected(i)
	}

	conv.seq.HideRange(0, length, false)
	for runStart := 0; runStart < visibleStart; {
		if before.Protected(runStart) {
			runStart++
			continue
		}
		runEnd := runStart
		for runEnd < visibleStart && !before.Protected(runEnd) {
			runEnd++
		}
		conv.seq.HideRange(runStart, runEnd, true)
		runStart = runEnd
	}

	after := retention.Project(conv.seq)
	var transitions []retention.Transition
	var affected []int
	for i := range min(len(before), len(after)) {
		if before.Missing(i) || before.Hidden(i) == after.Hidden(i) {
			continue
		}
		transitions = append(transitions, retention.Transition{Index: i, Hidden: after.Hidden(i)})
		affected = append(affected, i)
	}

	res := &Result{
		PassID:      newPassID(),
		Trigger:     TriggerSettingChanged,
		Strategy:    StrategyRange,
		Transitions: transitions,
	}
	next := retention.Cache{LastN: n, Length: length, Hidden: target}
	return d.finish(ctx, conv, res, affected, next, length, start)
}

// Notify schedules a pass for trigger after the debounce period. Triggers
// for the same conversation arriving within the period coalesce into one
// pass; the trigger with the highest precedence wins, so any full trigger
// outranks an append.
func (d *Driver) Notify(conv *Conversation, trigger Trigger) {
	if !trigger.Valid() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if p, ok := d.pending[conv]; ok {
		p.trigger = p.trigger.merge(trigger)
		p.timer.Reset(d.debounce)
		return
	}

	p := &pendingPass{trigger: trigger}
	p.timer = time.AfterFunc(d.debounce, func() { d.fire(conv, p) })
	d.pending[conv] = p
}

// Drain runs pending debounced passes now and waits for debounced passes
// that are already running.
func (d *Driver) Drain() {
	d.mu.Lock()
	var ready []*Conversation
	for conv, p := range d.pending {
		if p.timer.Stop() {
			ready = append(ready, conv)
		}
	}
	d.mu.Unlock()

	for _, conv := range ready {
		d.mu.Lock()
		p := d.pending[conv]
		d.mu.Unlock()
		if p != nil {
			d.fire(conv, p)
		}
	}
	d.inflight.Wait()
}

// Close drops pending debounced passes, waits for running passes, flushes
// settings and releases the compute provider and any store the driver
// created.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for conv, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, conv)
	}
	d.mu.Unlock()

	d.inflight.Wait()

	ctx := context.Background()
	if err := d.sem.Acquire(ctx, 1); err == nil {
		defer d.sem.Release(1)
	}

	var errs []error
	if err := d.settings.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrPersist, err))
	}
	if err := d.provider.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close compute provider: %w", err))
	}
	if d.ownsStore {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close settings store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) acquire(ctx context.Context) error {
	if d.isClosed() {
		return ErrClosed
	}
	return d.sem.Acquire(ctx, 1)
}

func (d *Driver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) fire(conv *Conversation, p *pendingPass) {
	d.mu.Lock()
	if d.closed || d.pending[conv] != p {
		d.mu.Unlock()
		return
	}
	delete(d.pending, conv)
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	ctx := context.Background()
	if _, err := d.Handle(ctx, conv, p.trigger); err != nil {
		d.observer.OnEvent(ctx, observability.Event{
			Type:      EventDebouncedFailed,
			Level:     observability.LevelError,
			Timestamp: time.Now(),
			Source:    "reconcile.Notify",
			Data: map[string]any{
				"conversation": conv.id,
				"trigger":      p.trigger.String(),
				"error":        err.Error(),
			},
		})
	}
}

// load reloads the conversation's settings and invalidates its cache. The
// persisted cache is never restored: the switch pass runs cold, so no
// override is detected across a conversation switch.
func (d *Driver) load(ctx context.Context, conv *Conversation) error {
	rec, err := d.settings.Load(ctx, conv.id)
	if err != nil {
		if !errors.Is(err, settings.ErrCorruptRecord) {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		d.observer.OnEvent(ctx, observability.Event{
			Type:      EventSettingsCorrupt,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    "reconcile.Open",
			Data: map[string]any{
				"conversation": conv.id,
				"error":        err.Error(),
			},
		})
	}

	conv.reset(rec.HideLastN, retention.Cache{}, rec.LastProcessedLength)

	d.observer.OnEvent(ctx, observability.Event{
		Type:      EventConversationOpen,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "reconcile.Open",
		Data: map[string]any{
			"conversation": conv.id,
			"n":            rec.HideLastN,
			"length":       conv.seq.Len(),
		},
	})
	return nil
}

func (d *Driver) reconcile(ctx context.Context, conv *Conversation, trigger Trigger) (*Result, error) {
	start := time.Now()
	n, prev, _ := conv.state()
	p := retention.Project(conv.seq)

	res := &Result{PassID: newPassID(), Trigger: trigger}
	var transitions []retention.Transition
	var next retention.Cache

	if trigger == TriggerAppended {
		res.Fallback = incrementalBlocker(n, prev, len(p))
		if res.Fallback == "" {
			inc := retention.ComputeIncremental(p, n, prev)
			if inc.Performed {
				res.Strategy = StrategyIncremental
				res.Provider = "engine"
				transitions = inc.Transitions
				next = inc.Cache
			} else {
				res.Fallback = string(inc.Reason)
			}
		}
		if res.Fallback != "" {
			d.observer.OnEvent(ctx, observability.Event{
				Type:      EventIncrementalSkip,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "reconcile.Driver",
				Data: map[string]any{
					"conversation": conv.id,
					"reason":       res.Fallback,
				},
			})
		}
	}

	if res.Strategy == "" {
		out, err := d.provider.Compute(ctx, &compute.Request{
			Projection: p,
			TargetN:    n,
			Previous:   prev,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to compute transitions: %w", err)
		}
		res.Strategy = StrategyFull
		res.Provider = d.provider.Name()
		res.Overrides = out.OverrideCount
		transitions = out.Transitions
		next = out.Cache
	}

	res.Transitions = transitions
	affected := make([]int, 0, len(transitions))
	for _, t := range transitions {
		if conv.seq.SetHidden(t.Index, t.Hidden) {
			affected = append(affected, t.Index)
		}
	}

	return d.finish(ctx, conv, res, affected, next, len(p), start)
}

// finish commits the cache, refreshes the presentation once, persists the
// conversation record and requests the host save. Errors from refresh and
// persistence are returned together after every step has run.
func (d *Driver) finish(ctx context.Context, conv *Conversation, res *Result, affected []int, next retention.Cache, length int, start time.Time) (*Result, error) {
	conv.commit(next, length)
	res.Affected = affected

	var errs []error
	if len(affected) > 0 {
		if err := d.presenter.Refresh(ctx, conv.id, affected); err != nil {
			d.failed(ctx, EventPresentFailed, conv.id, err)
			errs = append(errs, fmt.Errorf("%w: %w", ErrPresent, err))
		}
	}

	n, _, _ := conv.state()
	d.settings.Set(conv.id, settings.Record{
		HideLastN:           n,
		LastProcessedLength: length,
		Cache:               next,
	})
	if err := d.settings.Flush(ctx); err != nil {
		d.failed(ctx, EventPersistFailed, conv.id, err)
		errs = append(errs, fmt.Errorf("%w: %w", ErrPersist, err))
	}

	if len(affected) > 0 || res.Trigger == TriggerSettingChanged {
		d.persister.RequestSave(conv.id)
	}

	res.Duration = time.Since(start)
	data := map[string]any{
		"conversation": conv.id,
		"pass_id":      res.PassID,
		"trigger":      res.Trigger.String(),
		"strategy":     string(res.Strategy),
		"provider":     res.Provider,
		"n":            n,
		"length":       length,
		"transitions":  len(res.Transitions),
		"overrides":    res.Overrides,
		"duration_ms":  float64(res.Duration.Microseconds()) / 1000,
	}
	if r, ok := d.provider.(compute.StatsReporter); ok {
		stats := r.Stats()
		data["compute_offloaded"] = stats.Offloaded
		data["compute_fallbacks"] = stats.Fallbacks
		data["compute_timeouts"] = stats.Timeouts
	}
	d.observer.OnEvent(ctx, observability.Event{
		Type:      EventPassComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "reconcile.Driver",
		Data:      data,
	})

	return res, errors.Join(errs...)
}

func (d *Driver) failed(ctx context.Context, event observability.EventType, conversationID string, err error) {
	d.observer.OnEvent(ctx, observability.Event{
		Type:      event,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "reconcile.Driver",
		Data: map[string]any{
			"conversation": conversationID,
			"error":        err.Error(),
		},
	})
}

// incrementalBlocker returns why an append cannot use the incremental
// strategy, or "" when it can.
func incrementalBlocker(n int, prev retention.Cache, length int) string {
	switch {
	case n <= 0:
		return string(retention.ReasonNotPositive)
	case !prev.Valid():
		return "cache invalid"
	case prev.LastN != n:
		return "cache recorded under another retention count"
	case length <= prev.Length:
		return string(retention.ReasonNoGrowth)
	default:
		return ""
	}
}

func newPassID() string {
	return uuid.Must(uuid.NewV7()).String()
}
