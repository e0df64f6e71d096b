package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/store"
	"github.com/shaiso/gradeflow/internal/telemetry"
)

// DefaultSchedule — расписание по умолчанию.
const DefaultSchedule = "@every 30s"

// Тексты решения для задач, не получивших результат вовремя.
const (
	timeoutJustification = "no result within deadline"
	timeoutFeedback      = "Evaluation did not complete in time. Please resubmit."

	auditTimeout = 5 * time.Second
)

// Sweeper — периодическая уборка хранилища задач.
//
// За один проход:
//  1. Переводит в FAILED задачи, не завершившиеся за Deadline
//  2. Удаляет завершённые задачи старше Retention
//  3. Обновляет gauge задач по статусам
type Sweeper struct {
	store     *store.Store
	deadline  time.Duration
	retention time.Duration
	schedule  string
	audit     domain.AuditSink
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	now       func() time.Time

	cron *cron.Cron
}

// Config — конфигурация Sweeper.
type Config struct {
	Store     *store.Store
	Deadline  time.Duration // 0 — задачи не истекают
	Retention time.Duration // 0 — задачи не удаляются
	Schedule  string        // default: "@every 30s"

	// Audit (опционально) получает записи об истёкших задачах.
	Audit   domain.AuditSink
	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// Now подменяет источник времени (для тестов).
	Now func() time.Time
}

// New создаёт Sweeper.
func New(cfg Config) *Sweeper {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Sweeper{
		store:     cfg.Store,
		deadline:  cfg.Deadline,
		retention: cfg.Retention,
		schedule:  schedule,
		audit:     cfg.Audit,
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       now,
	}
}

// Start регистрирует проход в cron и запускает его.
func (s *Sweeper) Start(_ context.Context) error {
	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", s.schedule, err)
	}
	s.cron = c
	c.Start()

	s.logger.Info("sweeper started",
		"schedule", s.schedule,
		"deadline", s.deadline,
		"retention", s.retention,
	)
	return nil
}

// Stop останавливает cron и ждёт завершения текущего прохода.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// Sweep выполняет один проход.
func (s *Sweeper) Sweep() {
	now := s.now()

	var expired []string
	if s.deadline > 0 {
		expired = s.store.ExpireStale(now.Add(-s.deadline),
			domain.ErrorDecision(timeoutJustification, timeoutFeedback))
		for _, id := range expired {
			s.logger.Warn("task timed out", "task_id", id, "deadline", s.deadline)
			s.metrics.TaskTerminal(string(domain.TaskStatusFailed), string(domain.DecisionError))
			s.record(id)
		}
		s.metrics.TasksExpired(len(expired))
	}

	evicted := 0
	if s.retention > 0 {
		evicted = s.store.EvictFinished(now.Add(-s.retention))
		s.metrics.TasksEvicted(evicted)
	}

	counts := make(map[string]int)
	for st, n := range s.store.Counts() {
		counts[string(st)] = n
	}
	s.metrics.SetTaskCounts(counts)

	if len(expired) > 0 || evicted > 0 {
		s.logger.Info("sweep completed", "expired", len(expired), "evicted", evicted)
	}
}

// record пишет истечение срока в журнал аудита.
func (s *Sweeper) record(id string) {
	if s.audit == nil {
		return
	}
	task, err := s.store.Get(id)
	if err != nil {
		// Удалена между переходом и записью
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if err := s.audit.Record(ctx, domain.NewAuditEntry(task, nil)); err != nil {
		s.logger.Warn("failed to write timeout audit", "task_id", id, "error", err)
	}
}
