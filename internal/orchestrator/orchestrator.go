package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/gradeflow/internal/collab"
	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/store"
	"github.com/shaiso/gradeflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultPolicyTimeout = 10 * time.Second
	defaultAuditTimeout  = 5 * time.Second
)

// Reconciler сопоставляет оценённые конверты с задачами и завершает их.
//
// Reconciler — единственный писатель терминальных статусов из конвейера:
//   - Читает final-results-queue (prefetch = 1)
//   - Находит задачу по task_id
//   - Синхронно вызывает policy с таймаутом
//   - Выполняет терминальный переход (compare-and-set)
//   - Пишет решение в журнал аудита, если он подключён
type Reconciler struct {
	broker mq.Broker
	store  *store.Store
	policy collab.Policy
	audit  domain.AuditSink

	metrics *telemetry.Metrics

	// Configuration
	policyTimeout time.Duration

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Reconciler.
type Config struct {
	Broker mq.Broker
	Store  *store.Store
	Policy collab.Policy

	// Audit (опционально)
	Audit domain.AuditSink

	// Metrics (опционально)
	Metrics *telemetry.Metrics

	PolicyTimeout time.Duration // таймаут вызова policy (default: 10s)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Reconciler.
func New(cfg Config) *Reconciler {
	policyTimeout := cfg.PolicyTimeout
	if policyTimeout <= 0 {
		policyTimeout = defaultPolicyTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithStage(logger, "reconcile", string(mq.QueueFinalResult))

	return &Reconciler{
		broker:        cfg.Broker,
		store:         cfg.Store,
		policy:        cfg.Policy,
		audit:         cfg.Audit,
		metrics:       cfg.Metrics,
		policyTimeout: policyTimeout,
		logger:        logger,
	}
}

// Start запускает consumer final-results-queue.
func (r *Reconciler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.logger.Info("starting reconciler", "policy_timeout", r.policyTimeout)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.broker.Consume(ctx, mq.QueueFinalResult, r.handleGradedResult)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, mq.ErrBrokerClosed) {
			r.logger.Error("result consumer error", "error", err)
		}
	}()

	r.logger.Info("reconciler started")
	return nil
}

// Stop останавливает Reconciler.
func (r *Reconciler) Stop() {
	r.stoppedMu.Lock()
	r.stopped = true
	r.stoppedMu.Unlock()

	r.logger.Info("stopping reconciler...")

	if r.cancelFunc != nil {
		r.cancelFunc()
	}

	r.wg.Wait()

	r.logger.Info("reconciler stopped")
}

// IsStopped проверяет, остановлен ли Reconciler.
func (r *Reconciler) IsStopped() bool {
	r.stoppedMu.RLock()
	defer r.stoppedMu.RUnlock()
	return r.stopped
}
