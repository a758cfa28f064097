package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
)

// LogService is the remote authority for time logs
type LogService interface {
	Create(ctx context.Context) (*model.TimeLog, error)
	Finalize(ctx context.Context, logID int64, req model.FinalizeRequest) (*model.TimeLog, error)
	Get(ctx context.Context, logID int64) (*model.TimeLog, error)
}

// CacheInvalidator drops cached log listings after a log closes
type CacheInvalidator interface {
	InvalidateLogs(ctx context.Context) error
}

// Phase is the user-visible lifecycle state
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseAwaitingCategorization
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseAwaitingCategorization:
		return "awaiting categorization"
	default:
		return "idle"
	}
}

// Display is the read-only signal rendered by timer widgets
type Display struct {
	Formatted string
	Elapsed   int64
	IsRunning bool
	Phase     Phase
}

// Options configures a Controller
type Options struct {
	Clock             Clock
	NewTicker         TickerFactory
	TickInterval      time.Duration // default 1s
	ReconcileInterval time.Duration // 0 disables periodic reconciliation
	Caches            []CacheInvalidator
}

// Controller drives the timer: ticking, start/stop against the log
// service, and reconciliation with server state.
type Controller struct {
	store  *Store
	remote LogService
	opts   Options

	// stateMu orders read-modify-write sequences on the store (ticks against
	// start, stop and reconcile) so a late tick never lands on a new state.
	stateMu sync.Mutex

	starting atomic.Bool
	stopping atomic.Bool
	awaiting atomic.Bool

	mu          sync.Mutex
	mounted     bool
	closed      bool
	unsubscribe func()
	loopLogID   int64
	loopCancel  context.CancelFunc
	loopWG      *sync.WaitGroup

	displayMu        sync.Mutex
	displayListeners map[int]func(Display)
	nextDisplayID    int
}

// NewController wires a controller to its store and log service
func NewController(store *Store, remote LogService, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = store.clock
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewSystemTicker
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &Controller{
		store:            store,
		remote:           remote,
		opts:             opts,
		displayListeners: make(map[int]func(Display)),
	}
}

// Mount hydrates the store, reconciles it with the server and begins
// ticking if a timer is running. Calling it again is a no-op.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mounted = true
	c.unsubscribe = c.store.Subscribe(c.onStoreChange)
	c.mu.Unlock()

	if err := c.store.Load(ctx); err != nil {
		return fmt.Errorf("loading timer state: %w", err)
	}

	if _, err := c.Reconcile(ctx); err != nil {
		logger.Warn("Reconciliation inconclusive, keeping local timer", logger.Err(err))
	}
	return nil
}

// Close stops ticking and reconciliation and detaches from the store. It
// blocks until the background goroutines have exited.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel, wg, unsubscribe := c.loopCancel, c.loopWG, c.unsubscribe
	c.loopCancel, c.loopWG, c.loopLogID = nil, nil, 0
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	if wg != nil {
		wg.Wait()
	}
}

// Snapshot returns the current store state
func (c *Controller) Snapshot() Snapshot {
	return c.store.Snapshot()
}

// Phase reports the lifecycle state
func (c *Controller) Phase() Phase {
	return c.phaseFor(c.store.Snapshot())
}

func (c *Controller) phaseFor(snap Snapshot) Phase {
	switch {
	case !snap.IsRunning:
		return PhaseIdle
	case c.awaiting.Load():
		return PhaseAwaitingCategorization
	default:
		return PhaseRunning
	}
}

// Display returns the formatted time and running flag
func (c *Controller) Display() Display {
	return c.displayFor(c.store.Snapshot())
}

func (c *Controller) displayFor(snap Snapshot) Display {
	return Display{
		Formatted: snap.Formatted(),
		Elapsed:   snap.ElapsedTime,
		IsRunning: snap.IsRunning,
		Phase:     c.phaseFor(snap),
	}
}

// SubscribeDisplay registers fn for every display change (ticks included)
func (c *Controller) SubscribeDisplay(fn func(Display)) func() {
	c.displayMu.Lock()
	id := c.nextDisplayID
	c.nextDisplayID++
	c.displayListeners[id] = fn
	c.displayMu.Unlock()

	return func() {
		c.displayMu.Lock()
		delete(c.displayListeners, id)
		c.displayMu.Unlock()
	}
}

func (c *Controller) emitDisplay(d Display) {
	c.displayMu.Lock()
	fns := make([]func(Display), 0, len(c.displayListeners))
	for _, fn := range c.displayListeners {
		fns = append(fns, fn)
	}
	c.displayMu.Unlock()

	for _, fn := range fns {
		fn(d)
	}
}

// Start opens a new, uncategorized log on the server and starts ticking.
// Categorization is deferred to Stop.
func (c *Controller) Start(ctx context.Context) (*model.TimeLog, error) {
	if !c.starting.CompareAndSwap(false, true) {
		return nil, ErrRequestInFlight
	}
	defer c.starting.Store(false)

	if c.store.Snapshot().IsRunning {
		return nil, ErrAlreadyRunning
	}

	log, err := c.remote.Create(ctx)
	if err != nil {
		logger.Warn("Failed to start timer", logger.Err(err))
		return nil, fmt.Errorf("creating time log: %w", err)
	}

	// Prefer the server's instant: it is what the final duration is computed from.
	anchor := log.StartTime
	if anchor.IsZero() {
		anchor = c.opts.Clock.Now()
	}

	c.stateMu.Lock()
	err = c.store.StartTimerAt(log.ID, anchor)
	c.stateMu.Unlock()
	if err != nil {
		return nil, err
	}

	c.invalidateCaches(ctx)

	logger.Info("Timer started", logger.F("logId", log.ID), logger.F("startTime", anchor.Format(time.RFC3339)))
	return log, nil
}

// Stop finalizes the active log against a project and task. On failure the
// running timer is left untouched so the call can be retried; retries target
// the same log.
func (c *Controller) Stop(ctx context.Context, req model.FinalizeRequest) (*model.TimeLog, error) {
	if !c.stopping.CompareAndSwap(false, true) {
		return nil, ErrRequestInFlight
	}
	defer c.stopping.Store(false)

	snap := c.store.Snapshot()
	if !snap.IsRunning {
		return nil, ErrNotRunning
	}
	if !req.Complete() {
		return nil, ErrCategorizationRequired
	}

	log, err := c.remote.Finalize(ctx, snap.ActiveLogID, req)
	if err != nil {
		logger.Warn("Failed to stop timer", logger.F("logId", snap.ActiveLogID), logger.Err(err))
		return nil, fmt.Errorf("finalizing log %d: %w", snap.ActiveLogID, err)
	}

	c.closeActive(snap.ActiveLogID)
	c.invalidateCaches(ctx)

	logger.Info("Timer stopped",
		logger.F("logId", log.ID),
		logger.F("projectId", req.ProjectID),
		logger.F("taskId", req.TaskID),
		logger.F("durationSeconds", log.DurationSeconds))
	return log, nil
}

// Reconcile checks the active log against the server. It returns true when
// the server reported the log ended and the local timer was reset. Any
// lookup error, a 404 included, is inconclusive and leaves state unchanged.
func (c *Controller) Reconcile(ctx context.Context) (bool, error) {
	snap := c.store.Snapshot()
	if !snap.IsRunning || snap.ActiveLogID == 0 {
		return false, nil
	}

	log, err := c.remote.Get(ctx, snap.ActiveLogID)
	switch {
	case errors.Is(err, model.ErrLogNotFound):
		logger.Warn("Active log unknown to server, keeping local timer", logger.F("logId", snap.ActiveLogID))
		return false, fmt.Errorf("looking up log %d: %w", snap.ActiveLogID, err)
	case err != nil:
		return false, fmt.Errorf("looking up log %d: %w", snap.ActiveLogID, err)
	case log.IsOpen():
		return false, nil
	default:
		logger.Info("Active log was closed elsewhere",
			logger.F("logId", log.ID),
			logger.F("reason", log.ClosedReason))
	}

	if !c.closeActive(snap.ActiveLogID) {
		return false, nil
	}
	c.invalidateCaches(ctx)
	return true, nil
}

// Discard drops the local timer without contacting the server, for an active
// log the current user can no longer reach. The server-side log is left to
// the timeout sweep.
func (c *Controller) Discard(ctx context.Context) (int64, error) {
	if !c.stopping.CompareAndSwap(false, true) {
		return 0, ErrRequestInFlight
	}
	defer c.stopping.Store(false)

	snap := c.store.Snapshot()
	if !snap.IsRunning {
		return 0, ErrNotRunning
	}
	if !c.closeActive(snap.ActiveLogID) {
		return 0, ErrNotRunning
	}
	c.invalidateCaches(ctx)

	logger.Warn("Timer discarded locally", logger.F("logId", snap.ActiveLogID))
	return snap.ActiveLogID, nil
}

// closeActive resets the store if logID is still the active log
func (c *Controller) closeActive(logID int64) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	cur := c.store.Snapshot()
	if !cur.IsRunning || cur.ActiveLogID != logID {
		return false
	}
	c.store.StopTimer()
	c.store.ResetTimer()
	return true
}

// Tick recomputes elapsed time from the start anchor. It never increments,
// so late or skipped ticks cannot accumulate drift.
func (c *Controller) Tick() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	snap := c.store.Snapshot()
	if !snap.IsRunning || snap.StartTime == nil {
		return
	}
	c.store.UpdateElapsedTime(ElapsedSince(*snap.StartTime, c.opts.Clock.Now()))
}

// BeginCategorization moves a running timer into AwaitingCategorization
func (c *Controller) BeginCategorization() error {
	if !c.store.Snapshot().IsRunning {
		return ErrNotRunning
	}
	c.awaiting.Store(true)
	c.emitDisplay(c.Display())
	return nil
}

// CancelCategorization returns to Running without touching the timer
func (c *Controller) CancelCategorization() {
	if c.awaiting.CompareAndSwap(true, false) {
		c.emitDisplay(c.Display())
	}
}

// Ticking reports whether a tick loop is installed
func (c *Controller) Ticking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loopCancel != nil
}

func (c *Controller) onStoreChange(snap Snapshot) {
	if snap.IsRunning {
		c.startLoop(snap.ActiveLogID)
	} else {
		c.awaiting.Store(false)
		c.stopLoop()
	}
	c.emitDisplay(c.displayFor(snap))
}

// startLoop installs the tick (and reconcile) goroutines for logID,
// cancelling any loop left from a previous log first.
func (c *Controller) startLoop(logID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || (c.loopCancel != nil && c.loopLogID == logID) {
		return
	}
	if c.loopCancel != nil {
		c.loopCancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	c.loopLogID, c.loopCancel, c.loopWG = logID, cancel, wg

	wg.Add(1)
	go c.tickLoop(ctx, wg)

	if c.opts.ReconcileInterval > 0 {
		wg.Add(1)
		go c.reconcileLoop(ctx, wg)
	}
}

// stopLoop cancels without waiting: it may run on a loop goroutine itself
func (c *Controller) stopLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loopCancel != nil {
		c.loopCancel()
	}
	c.loopLogID, c.loopCancel, c.loopWG = 0, nil, nil
}

func (c *Controller) tickLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := c.opts.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.Tick()
		}
	}
}

func (c *Controller) reconcileLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := c.opts.NewTicker(c.opts.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, err := c.Reconcile(ctx); err != nil && ctx.Err() == nil {
				logger.Debug("Periodic reconciliation inconclusive", logger.Err(err))
			}
		}
	}
}

// invalidateCaches ignores cancellation of ctx: resetting the store from a
// reconcile loop cancels that loop's own context.
func (c *Controller) invalidateCaches(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, cache := range c.opts.Caches {
		if err := cache.InvalidateLogs(ctx); err != nil {
			logger.Warn("Failed to invalidate log cache", logger.Err(err))
		}
	}
}
