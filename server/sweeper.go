package server

import (
	"context"
	"time"

	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
)

// Sweep closes every log open longer than MaxOpenDuration. Each is ended at
// start+MaxOpenDuration with reason timeout. It returns how many were closed.
func (s *Server) Sweep(ctx context.Context) (int, error) {
	if s.cfg.MaxOpenDuration <= 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := s.now().Add(-s.cfg.MaxOpenDuration)
	stale, err := s.openLogs(ctx, tx, `WHERE end_time IS NULL AND start_time < $1`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}

	for _, l := range stale {
		if err := s.closeLog(ctx, tx, l, l.StartTime.Add(s.cfg.MaxOpenDuration), model.ClosedTimeout); err != nil {
			return 0, err
		}
		logger.Info("Log timed out",
			logger.F("user", l.UserID),
			logger.F("logId", l.ID),
			logger.F("startTime", l.StartTime.Format(time.RFC3339)))
	}

	return len(stale), tx.Commit()
}

func (s *Server) startSweeper() {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	if s.cfg.SweepInterval <= 0 || s.cfg.MaxOpenDuration <= 0 || s.sweepCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel

	s.sweepWG.Add(1)
	go func() {
		defer s.sweepWG.Done()

		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.Sweep(ctx); err != nil {
					logger.Error("Timeout sweep failed", logger.Err(err))
				} else if n > 0 {
					logger.Info("Timeout sweep closed logs", logger.F("count", n))
				}
			}
		}
	}()
}

func (s *Server) stopSweeper() {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	if s.sweepCancel == nil {
		return
	}
	s.sweepCancel()
	s.sweepWG.Wait()
	s.sweepCancel = nil
}
