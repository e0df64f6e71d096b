package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/gradeflow/internal/domain"
)

// Store — потокобезопасное отображение task_id → запись задачи.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task

	now func() time.Time
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New создаёт пустой Store.
func New(opts ...Option) *Store {
	s := &Store{
		tasks: make(map[string]*domain.Task),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create добавляет задачу в статусе PENDING.
func (s *Store) Create(id string, sub domain.Submission) (*domain.Task, error) {
	now := s.now()
	task := &domain.Task{
		ID:         id,
		Submission: sub,
		Status:     domain.TaskStatusPending,
		Step:       domain.StepQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.insert(task); err != nil {
		return nil, err
	}
	return task.Clone(), nil
}

// CreateFailed добавляет задачу сразу в статусе FAILED.
// Используется, когда первая публикация не удалась: клиент получает
// осмысленный терминальный статус вместо 404.
func (s *Store) CreateFailed(id string, sub domain.Submission, step string, decision domain.Decision) (*domain.Task, error) {
	now := s.now()
	task := &domain.Task{
		ID:         id,
		Submission: sub,
		Status:     domain.TaskStatusFailed,
		Step:       step,
		Result:     &decision,
		CreatedAt:  now,
		UpdatedAt:  now,
		FinishedAt: &now,
	}

	if err := s.insert(task); err != nil {
		return nil, err
	}
	return task.Clone(), nil
}

func (s *Store) insert(task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}
	s.tasks[task.ID] = task
	return nil
}

// Has проверяет наличие задачи.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[id]
	return ok
}

// Get возвращает копию задачи.
func (s *Store) Get(id string) (*domain.Task, error) {
	s.mu.RLock()
	task, ok := s.tasks[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	// Запись неизменяема, копия защищает от изменений вызывающим
	return task.Clone(), nil
}

// TransitionTerminal переводит задачу в COMPLETE или FAILED по статусу решения
// и сохраняет решение. Compare-and-set: для уже завершённой задачи возвращает
// ErrAlreadyTerminal и текущую запись без изменений.
func (s *Store) TransitionTerminal(id string, decision domain.Decision, producerID string) (*domain.Task, error) {
	return s.transition(id, decision, domain.StepComplete, producerID, nil)
}

// transition — общий CAS для терминальных переходов.
// guard, если задан, дополнительно проверяет текущую запись под блокировкой.
func (s *Store) transition(id string, decision domain.Decision, step, producerID string, guard func(*domain.Task) bool) (*domain.Task, error) {
	if !decision.Status.IsValid() {
		decision = domain.ErrorDecision(
			fmt.Sprintf("policy returned unknown status %q", decision.Status),
			decision.Feedback,
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	if cur.Status.IsTerminal() {
		return cur.Clone(), fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, cur.Status)
	}
	if !cur.Status.CanTransitionTo(decision.Status.TaskStatus()) || (guard != nil && !guard(cur)) {
		return cur.Clone(), fmt.Errorf("%w: %s", ErrInvalidTransition, id)
	}

	now := s.now()
	result := decision

	updated := cur.Clone()
	updated.Status = decision.Status.TaskStatus()
	updated.Step = step
	updated.Result = &result
	updated.ProducerID = producerID
	updated.UpdatedAt = now
	updated.FinishedAt = &now
	s.tasks[id] = updated

	return updated.Clone(), nil
}

// Filter — параметры выборки задач.
type Filter struct {
	Status domain.TaskStatus
	Limit  int
}

// List возвращает задачи, отсортированные от новых к старым.
func (s *Store) List(filter Filter) []domain.Task {
	s.mu.RLock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, *t.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Counts возвращает количество задач по статусам (все статусы присутствуют).
func (s *Store) Counts() map[domain.TaskStatus]int {
	counts := make(map[domain.TaskStatus]int, len(domain.AllTaskStatuses()))
	for _, st := range domain.AllTaskStatuses() {
		counts[st] = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		counts[t.Status]++
	}
	return counts
}

// Len возвращает общее количество задач.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
