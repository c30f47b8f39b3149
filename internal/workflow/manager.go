package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/message"
	"loom/internal/queue"
	"loom/internal/router"
	"loom/internal/services"
	"loom/internal/stage"
)

type laneKind string

const (
	laneControl laneKind = "control"
	laneStages  laneKind = "stages"
)

// Manager pumps the durable queues. One goroutine per lane: the control lane
// feeds the router, the stage lane dispatches to registered workers. Lease
// expiry plus the reclaim pass give at-least-once redelivery; the
// max-deliveries cutoff and poison classification keep bad messages from
// cycling forever.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	router       *router.Router
	logger       *slog.Logger
	pollInterval time.Duration
	errorRetry   time.Duration
	leaseFor     time.Duration

	mu       sync.RWMutex
	handlers map[string]stage.Handler
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, rt *router.Router, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		router:       rt,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetry:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		leaseFor:     time.Duration(cfg.Workflow.LeaseSeconds) * time.Second,
		handlers:     make(map[string]stage.Handler),
	}
}

// Register adds a stage handler, keyed by the op it consumes.
func (m *Manager) Register(handler stage.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[handler.Op()] = handler
}

// Start launches the queue lanes. It returns an error if the manager is
// already running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow manager already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(2)
	go m.runLane(runCtx, laneControl, m.cfg.Queues.Control)
	go m.runLane(runCtx, laneStages, m.cfg.Queues.Stages)
	m.logger.Info("workflow manager started",
		slog.String("control_queue", m.cfg.Queues.Control),
		slog.String("stage_queue", m.cfg.Queues.Stages))
	return nil
}

// Stop shuts the lanes down and waits for in-flight deliveries to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow manager stopped")
}

// Health reports the readiness of every registered handler.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]stage.Health, 0, len(m.handlers))
	for _, handler := range m.handlers {
		results = append(results, handler.HealthCheck(ctx))
	}
	return results
}

func (m *Manager) runLane(ctx context.Context, kind laneKind, queueName string) {
	defer m.wg.Done()
	ctx = services.WithQueue(ctx, queueName)
	log := m.logger.With(slog.String(logging.FieldQueue, queueName))

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if err := m.drainLane(ctx, kind, queueName, log); err != nil {
			log.Error("lane drain failed", logging.Error(err))
			if !sleepCtx(ctx, m.errorRetry) {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drainLane processes ready deliveries until the queue is empty. Expired
// leases are reclaimed first so crashed consumers' work is redelivered.
func (m *Manager) drainLane(ctx context.Context, kind laneKind, queueName string, log *slog.Logger) error {
	if reclaimed, err := m.store.ReclaimExpired(ctx); err != nil {
		return fmt.Errorf("reclaim expired: %w", err)
	} else if reclaimed > 0 {
		log.Info("reclaimed expired leases", slog.Int64("count", reclaimed))
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		delivery, err := m.store.Lease(ctx, queueName, m.leaseFor)
		if err != nil {
			return fmt.Errorf("lease: %w", err)
		}
		if delivery == nil {
			return nil
		}
		switch kind {
		case laneControl:
			m.processControl(ctx, delivery, log)
		case laneStages:
			m.processStage(ctx, delivery, log)
		}
	}
}

// processControl feeds the router. Control deliveries are always acked: the
// router swallows its own failures, and a malformed control message would
// fail identically on every redelivery.
func (m *Manager) processControl(ctx context.Context, delivery *queue.Delivery, log *slog.Logger) {
	msg, err := message.Decode(delivery.Body)
	if err != nil {
		log.Warn("dropping undecodable control message",
			slog.Int64("delivery_id", delivery.ID),
			logging.Error(err))
		m.ack(ctx, delivery, log)
		return
	}
	m.router.Route(ctx, msg)
	m.ack(ctx, delivery, log)
}

func (m *Manager) processStage(ctx context.Context, delivery *queue.Delivery, log *slog.Logger) {
	msg, err := message.Decode(delivery.Body)
	if err != nil {
		log.Warn("burying undecodable stage message",
			slog.Int64("delivery_id", delivery.ID),
			logging.Error(err))
		if buryErr := m.store.Bury(ctx, delivery.ID, err.Error()); buryErr != nil {
			log.Error("bury failed", logging.Error(buryErr))
		}
		return
	}

	m.mu.RLock()
	handler, ok := m.handlers[msg.Op]
	m.mu.RUnlock()
	if !ok {
		log.Warn("no handler registered for op, dropping",
			slog.String(logging.FieldOp, msg.Op))
		m.ack(ctx, delivery, log)
		return
	}

	execCtx := services.WithRunID(ctx, msg.RunID)
	execCtx = services.WithStage(execCtx, msg.Op)
	if err := handler.Execute(execCtx, msg); err != nil {
		m.failDelivery(ctx, delivery, msg, err, log)
		return
	}
	m.ack(ctx, delivery, log)
}

// failDelivery applies the retry policy: poison failures and deliveries past
// the budget are buried, everything else goes back to ready for another
// attempt.
func (m *Manager) failDelivery(ctx context.Context, delivery *queue.Delivery, msg message.Message, execErr error, log *slog.Logger) {
	log = log.With(
		slog.String(logging.FieldOp, msg.Op),
		slog.String(logging.FieldRunID, msg.RunID),
		slog.Int("delivery_count", delivery.DeliveryCount))

	if services.IsPoison(execErr) {
		log.Error("stage failure is not retryable, burying", logging.Error(execErr))
		if err := m.store.Bury(ctx, delivery.ID, execErr.Error()); err != nil {
			log.Error("bury failed", logging.Error(err))
		}
		return
	}
	if delivery.DeliveryCount >= m.cfg.Workflow.MaxDeliveries {
		log.Error("delivery budget exhausted, burying", logging.Error(execErr))
		if err := m.store.Bury(ctx, delivery.ID, execErr.Error()); err != nil {
			log.Error("bury failed", logging.Error(err))
		}
		return
	}
	log.Warn("stage failed, releasing for retry", logging.Error(execErr))
	if err := m.store.Release(ctx, delivery.ID, execErr.Error()); err != nil {
		log.Error("release failed", logging.Error(err))
	}
}

func (m *Manager) ack(ctx context.Context, delivery *queue.Delivery, log *slog.Logger) {
	if err := m.store.Ack(ctx, delivery.ID); err != nil {
		log.Error("ack failed", slog.Int64("delivery_id", delivery.ID), logging.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
