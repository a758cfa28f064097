package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/existflow/irontrack/internal/categorize"
	"github.com/existflow/irontrack/internal/config"
	"github.com/existflow/irontrack/internal/db"
	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
	"github.com/existflow/irontrack/internal/remote"
	"github.com/existflow/irontrack/internal/timer"
)

// recentLogLimit is how many logs `track logs` and the TUI show
const recentLogLimit = 20

// app holds everything a command needs. It is the single place the timer
// store is built.
type app struct {
	cfg    *config.Config
	db     *db.DB
	client *remote.Client
	store  *timer.Store
	ctrl   *timer.Controller
	dialog *categorize.Dialog
}

// openApp opens local state and mounts the timer controller. Periodic
// reconciliation runs only for long-lived commands.
func openApp(ctx context.Context, periodic bool) (*app, error) {
	if cfg.UserID == "" {
		return nil, errors.New("no user configured, run: track config set user <id>")
	}

	var (
		database *db.DB
		err      error
	)
	if cfg.DBPath == "" {
		database, err = db.OpenDefault()
	} else {
		database, err = db.Open(cfg.DBPath)
	}
	if err != nil {
		logger.Error("Failed to open database", logger.Err(err))
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &app{
		cfg:    cfg,
		db:     database,
		client: remote.NewClient(cfg.ServerURL, cfg.UserID, cfg.RequestTimeout),
		store:  timer.NewStore(database),
	}

	opts := timer.Options{Caches: []timer.CacheInvalidator{database}}
	if periodic {
		opts.ReconcileInterval = cfg.ReconcileInterval
	}
	a.ctrl = timer.NewController(a.store, a.client, opts)
	a.dialog = categorize.New(a.ctrl, a.client)

	mountCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	if err := a.ctrl.Mount(mountCtx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	a.ctrl.Close()
	if err := a.db.Close(); err != nil {
		logger.Warn("Failed to close database", logger.Err(err))
	}
}

// requestContext bounds a single remote call
func (a *app) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.cfg.RequestTimeout)
}

// recentLogs serves the listing from the local cache, refilling it from the
// server when it was invalidated or refresh is set.
func (a *app) recentLogs(ctx context.Context, refresh bool) ([]model.TimeLog, error) {
	if !refresh {
		logs, ok, err := a.db.CachedLogs(ctx)
		if err != nil {
			logger.Warn("Failed to read log cache", logger.Err(err))
		} else if ok {
			return logs, nil
		}
	}

	logs, err := a.client.ListLogs(ctx, recentLogLimit)
	if err != nil {
		return nil, err
	}
	if err := a.db.CacheLogs(ctx, logs); err != nil {
		logger.Warn("Failed to cache logs", logger.Err(err))
	}
	return logs, nil
}
