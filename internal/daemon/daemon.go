package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"transponster/internal/config"
	"transponster/internal/logging"
	"transponster/internal/mapping"
	"transponster/internal/workflow"
)

// EventsHandler serves the Slack request URL. Wait blocks until dispatched
// events have finished.
type EventsHandler interface {
	http.Handler
	Wait()
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *mapping.Store
	workflow *workflow.Manager
	events   EventsHandler
	botUser  string

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu        sync.Mutex
	running   atomic.Bool
	startedAt atomic.Int64
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	BotUser        string
	MappingsDBPath string
	MappingCount   int
	LockFilePath   string
	DriveEnabled   bool
	Workflow       workflow.StatusSummary
}

// Option configures optional daemon settings.
type Option func(*Daemon)

// WithBotUser records the bot identity reported by status.
func WithBotUser(name string) Option {
	return func(d *Daemon) {
		d.botUser = name
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *mapping.Store, logger *slog.Logger, wf *workflow.Manager, events EventsHandler, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || events == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and events handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		events:   events,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the workflow and begins serving HTTP.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another transponster daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.startedAt.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("transponster daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
		logging.String("events_endpoint", d.cfg.Paths.SlackEventsEndpoint),
	)
	return nil
}

// Stop closes the listener, waits for dispatched events, stops the workflow
// and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.events.Wait()
	d.workflow.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
			logging.String("lock", d.lockPath),
			logging.Error(err),
		)
	}
	d.running.Store(false)
	d.logger.Info("transponster daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Address returns the bound API address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status. It does not take the lifecycle
// lock so API requests can be answered during shutdown.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		BotUser:        d.botUser,
		MappingsDBPath: d.store.Path(),
		LockFilePath:   d.lockPath,
		DriveEnabled:   d.cfg.Drive.Enabled,
		Workflow:       d.workflow.Status(),
	}
	count, err := d.store.Count(ctx)
	if err != nil {
		d.logger.Debug("mapping count unavailable", logging.Error(err))
	}
	status.MappingCount = count
	if started := d.startedAt.Load(); started != 0 {
		status.StartedAt = time.Unix(0, started)
	}
	return status
}
