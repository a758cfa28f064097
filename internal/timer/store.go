package timer

import (
	"context"
	"sync"
	"time"

	"github.com/existflow/irontrack/internal/logger"
)

// Persister stores the serialized snapshot across restarts
type Persister interface {
	LoadTimerState(ctx context.Context) ([]byte, error)
	SaveTimerState(ctx context.Context, data []byte) error
}

// Store holds the timer snapshot. It is built once at the application root
// and handed to every consumer; state changes only through its mutators.
type Store struct {
	mu        sync.Mutex
	state     Snapshot
	persister Persister
	clock     Clock

	listenerMu sync.Mutex
	listeners  map[int]func(Snapshot)
	nextID     int
}

// StoreOption customizes a Store
type StoreOption func(*Store)

// WithClock overrides the wall clock
func WithClock(c Clock) StoreOption {
	return func(s *Store) {
		s.clock = c
	}
}

// NewStore creates an empty store. A nil persister keeps state in memory only.
func NewStore(persister Persister, opts ...StoreOption) *Store {
	s := &Store{
		persister: persister,
		clock:     SystemClock{},
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to receive every new snapshot, synchronously after
// each change. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

// Load hydrates the store from the persister. A running snapshot gets its
// elapsed time recomputed from the start anchor, so a restart five seconds
// after start reads 5, not the stale cached value.
func (s *Store) Load(ctx context.Context) error {
	var loaded Snapshot
	if s.persister != nil {
		data, err := s.persister.LoadTimerState(ctx)
		if err != nil {
			return err
		}
		if data != nil {
			loaded, err = decodeSnapshot(data)
			if err != nil {
				logger.Warn("Discarding unreadable timer state", logger.Err(err))
				loaded = Snapshot{}
			}
		}
	}

	if !loaded.consistent() {
		logger.Warn("Discarding inconsistent timer state",
			logger.F("isRunning", loaded.IsRunning),
			logger.F("activeLogId", loaded.ActiveLogID))
		loaded = Snapshot{}
	}
	switch {
	case loaded.IsRunning:
		loaded.ElapsedTime = ElapsedSince(*loaded.StartTime, s.clock.Now())
	case loaded != (Snapshot{}):
		// Stopped but never reset: the log was closed, nothing is left to show.
		logger.Info("Clearing stopped timer state", logger.F("activeLogId", loaded.ActiveLogID))
		loaded = Snapshot{}
	}

	s.apply(func(st *Snapshot) bool {
		*st = loaded
		return true
	})
	return nil
}

// StartTimer marks logID as the active, running log anchored at now
func (s *Store) StartTimer(logID int64) error {
	return s.StartTimerAt(logID, s.clock.Now())
}

// StartTimerAt marks logID as the active, running log anchored at start.
// It fails with ErrAlreadyRunning rather than replacing a running log.
func (s *Store) StartTimerAt(logID int64, start time.Time) error {
	var err error
	now := s.clock.Now()
	s.apply(func(st *Snapshot) bool {
		if st.IsRunning {
			err = ErrAlreadyRunning
			return false
		}
		anchor := start
		*st = Snapshot{
			IsRunning:   true,
			ActiveLogID: logID,
			StartTime:   &anchor,
			ElapsedTime: ElapsedSince(anchor, now),
		}
		return true
	})
	return err
}

// StopTimer clears the running flag but keeps the elapsed value, the active
// log and its anchor until ResetTimer.
func (s *Store) StopTimer() {
	s.apply(func(st *Snapshot) bool {
		if !st.IsRunning {
			return false
		}
		st.IsRunning = false
		return true
	})
}

// UpdateElapsedTime records the latest computed elapsed seconds. Elapsed
// time only advances while running.
func (s *Store) UpdateElapsedTime(seconds int64) {
	if seconds < 0 {
		seconds = 0
	}
	s.apply(func(st *Snapshot) bool {
		if !st.IsRunning || st.ElapsedTime == seconds {
			return false
		}
		st.ElapsedTime = seconds
		return true
	})
}

// ResetTimer returns the store to the empty state
func (s *Store) ResetTimer() {
	s.apply(func(st *Snapshot) bool {
		if *st == (Snapshot{}) {
			return false
		}
		*st = Snapshot{}
		return true
	})
}

// apply runs mutate under the lock. When it reports a change the new state
// is persisted (still under the lock, so writes land in order) and then
// broadcast.
func (s *Store) apply(mutate func(*Snapshot) bool) {
	s.mu.Lock()
	if !mutate(&s.state) {
		s.mu.Unlock()
		return
	}
	next := s.state.clone()
	s.persist(next)
	s.mu.Unlock()

	s.notify(next)
}

func (s *Store) persist(snap Snapshot) {
	if s.persister == nil {
		return
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		logger.Error("Failed to encode timer state", logger.Err(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.persister.SaveTimerState(ctx, data); err != nil {
		logger.Error("Failed to persist timer state", logger.Err(err))
	}
}

func (s *Store) notify(snap Snapshot) {
	s.listenerMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(snap.clone())
	}
}
