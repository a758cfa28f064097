package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/existflow/irontrack/internal/model"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{now: at}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	c.now = at
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memPersister struct {
	mu    sync.Mutex
	data  []byte
	saves int
	err   error
}

func (p *memPersister) LoadTimerState(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data, p.err
}

func (p *memPersister) SaveTimerState(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.data = append([]byte(nil), data...)
	return nil
}

func (p *memPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

type fakeRemote struct {
	mu sync.Mutex

	nextID    int64
	startTime time.Time
	createErr error

	finalizeErr error
	finalized   []int64

	getLog *model.TimeLog
	getErr error

	calls int

	// block, when set, holds Create/Finalize until closed
	block   chan struct{}
	entered chan struct{}
}

func (r *fakeRemote) wait() {
	r.mu.Lock()
	block, entered := r.block, r.entered
	r.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
}

func (r *fakeRemote) Create(ctx context.Context) (*model.TimeLog, error) {
	r.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.createErr != nil {
		return nil, r.createErr
	}
	return &model.TimeLog{ID: r.nextID, StartTime: r.startTime}, nil
}

func (r *fakeRemote) Finalize(ctx context.Context, logID int64, req model.FinalizeRequest) (*model.TimeLog, error) {
	r.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.finalizeErr != nil {
		return nil, r.finalizeErr
	}
	r.finalized = append(r.finalized, logID)
	end := r.startTime.Add(time.Minute)
	return &model.TimeLog{
		ID:              logID,
		StartTime:       r.startTime,
		EndTime:         &end,
		ProjectID:       &req.ProjectID,
		TaskID:          &req.TaskID,
		DurationSeconds: 60,
		ClosedReason:    model.ClosedFinalized,
	}, nil
}

func (r *fakeRemote) Get(ctx context.Context, logID int64) (*model.TimeLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.getLog == nil {
		return nil, model.ErrLogNotFound
	}
	return r.getLog, nil
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type countingCache struct {
	mu    sync.Mutex
	count int
}

func (c *countingCache) InvalidateLogs(context.Context) error {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return nil
}

func (c *countingCache) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.once.Do(func() { close(f.stopped) }) }

// tickerRecorder hands out fake tickers and reports each one as it is created
type tickerRecorder struct {
	created chan *fakeTicker
}

func newTickerRecorder() *tickerRecorder {
	return &tickerRecorder{created: make(chan *fakeTicker, 16)}
}

func (r *tickerRecorder) factory(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	r.created <- t
	return t
}

var errNetwork = errors.New("dial tcp: connection refused")
