package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"loom/internal/api"
	"loom/internal/artifact"
	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/router"
	"loom/internal/runstatus"
	"loom/internal/stage"
	"loom/internal/workers"
	"loom/internal/workflow"
)

// Daemon coordinates the background pipeline services and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	workflow  *workflow.Manager
	campaigns *api.CampaignService
	apiServer *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	QueueHealthy bool
	LockFilePath string
	Stages       []stage.Health
}

// New builds a fully wired daemon: store, gateways, router, workflow manager
// with every stage registered, and the API server.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	blobs, err := artifact.NewFSStore(cfg.Paths.ArtifactDir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	status := runstatus.NewStore(blobs)

	controlGW, err := queue.NewGateway(store, cfg.Queues.Control)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	stagesGW, err := queue.NewGateway(store, cfg.Queues.Stages)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	rt := router.New(blobs, status, stagesGW, logger)
	manager := workflow.NewManager(cfg, store, rt, logger)

	env := &stage.Env{
		Artifacts: blobs,
		Status:    status,
		Control:   controlGW,
		Logger:    logger,
		Now:       func() time.Time { return time.Now().UTC() },
	}
	manager.Register(workers.NewEvidenceWorker(env))
	manager.Register(workers.NewEnrichWorker(env))
	manager.Register(workers.NewScoreWorker(env))
	manager.Register(workers.NewViabilityWorker(env))
	manager.Register(workers.NewOutlineWorker(env))
	manager.Register(workers.NewSectionWriter(env))
	manager.Register(workers.NewAssembleWorker(env))

	campaigns := api.NewCampaignService(blobs, status, stagesGW, logger)

	lockPath := filepath.Join(cfg.Paths.DataDir, "loomd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		workflow:  manager,
		campaigns: campaigns,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.apiServer, err = newAPIServer(cfg, d, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}

// Start acquires the instance lock and launches the workflow manager and
// API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another loom daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.apiServer != nil {
		if err := d.apiServer.start(runCtx); err != nil {
			d.workflow.Stop()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("loom daemon started", slog.String("lock", d.lockPath))
	return nil
}

// Stop shuts down background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiServer.stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("loom daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime information for the status endpoint and CLI.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.cfg.QueueDBPath(),
		QueueHealthy: d.store.CheckHealth(ctx) == nil,
		LockFilePath: d.lockPath,
		Stages:       d.workflow.Health(ctx),
	}
}

// Campaigns exposes the campaign service to the API server.
func (d *Daemon) Campaigns() *api.CampaignService {
	return d.campaigns
}

// Store exposes the queue store for inspection endpoints.
func (d *Daemon) Store() *queue.Store {
	return d.store
}
