package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/store"
	"github.com/shaiso/gradeflow/internal/telemetry"
)

const (
	defaultPublishTimeout = 5 * time.Second
	defaultAuditTimeout   = 5 * time.Second
	maxIDAttempts         = 3

	publishErrorFeedback = "The evaluation could not be queued. Please resubmit."
)

// Service принимает задачи и отвечает на запросы статуса.
type Service struct {
	broker  mq.Broker
	store   *store.Store
	audit   domain.AuditSink
	metrics *telemetry.Metrics
	logger  *slog.Logger

	publishTimeout time.Duration
	newID          func() string
}

// Config — конфигурация Service.
type Config struct {
	Broker  mq.Broker
	Store   *store.Store
	Audit   domain.AuditSink // опционально: журнал сбоев публикации
	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	PublishTimeout time.Duration // default: 5s

	// NewID подменяет генератор task_id (для тестов).
	NewID func() string
}

// New создаёт Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Service{
		broker:         cfg.Broker,
		store:          cfg.Store,
		audit:          cfg.Audit,
		metrics:        cfg.Metrics,
		logger:         logger,
		publishTimeout: publishTimeout,
		newID:          newID,
	}
}

// Submit принимает задачу.
//
//  1. Проверяет submission (domain.ErrInvalidSubmission)
//  2. Генерирует task_id
//  3. Публикует конверт в task-queue
//  4. Только после успешной публикации создаёт задачу в PENDING
//
// Если публикация не удалась, задача записывается как FAILED с причиной
// "Publish Error", а вызывающему возвращается ErrBrokerUnavailable вместе с task_id.
func (s *Service) Submit(ctx context.Context, sub domain.Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}

	id, err := s.allocateID()
	if err != nil {
		return "", err
	}
	logger := telemetry.WithTaskID(s.logger, id)

	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	if err := s.broker.Publish(pubCtx, mq.QueueTasks, domain.NewSubmissionMessage(id, sub)); err != nil {
		s.metrics.PublishFailed(string(mq.QueueTasks))
		logger.Error("failed to publish task", "error", err)

		decision := domain.ErrorDecision(fmt.Sprintf("Publish Error: %v", err), publishErrorFeedback)
		failed, cerr := s.store.CreateFailed(id, sub, domain.StepPublishError, decision)
		if cerr != nil {
			logger.Error("failed to record publish failure", "error", cerr)
		} else {
			s.record(ctx, failed)
		}
		s.metrics.TaskTerminal(string(domain.TaskStatusFailed), string(domain.DecisionError))
		return id, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	if _, err := s.store.Create(id, sub); err != nil {
		logger.Error("failed to create task after publish", "error", err)
		return "", fmt.Errorf("create task: %w", err)
	}

	s.metrics.TaskSubmitted()
	logger.Info("task submitted",
		"exam_id", sub.ExamID,
		"target_question", sub.TargetQuestion,
		"sentinel", sub.IsSentinel(),
	)
	return id, nil
}

// allocateID генерирует task_id, которого ещё нет в хранилище.
func (s *Service) allocateID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if !s.store.Has(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate task id: %w", store.ErrDuplicateTask)
}

// Status возвращает видимое клиенту состояние задачи.
func (s *Service) Status(id string) (domain.View, error) {
	task, err := s.Get(id)
	if err != nil {
		return domain.View{}, err
	}
	return task.View(), nil
}

// Get возвращает полную запись задачи.
func (s *Service) Get(id string) (*domain.Task, error) {
	task, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return task, nil
}

// List возвращает задачи по фильтру, от новых к старым.
func (s *Service) List(filter store.Filter) []domain.Task {
	return s.store.List(filter)
}

// Counts возвращает количество задач по статусам.
func (s *Service) Counts() map[domain.TaskStatus]int {
	return s.store.Counts()
}

// record пишет сбой публикации в журнал аудита. Ошибка журнала не влияет на ответ.
func (s *Service) record(ctx context.Context, task *domain.Task) {
	if s.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultAuditTimeout)
	defer cancel()

	if err := s.audit.Record(ctx, domain.NewAuditEntry(task, nil)); err != nil {
		telemetry.WithTaskID(s.logger, task.ID).Warn("failed to write publish failure audit", "error", err)
	}
}
