package store

import (
	"time"

	"github.com/shaiso/gradeflow/internal/domain"
)

// ExpireStale переводит в FAILED все нетерминальные задачи, созданные раньше cutoff.
// Возвращает ID проваленных задач. Задача, успевшая завершиться между выборкой
// и переходом, не трогается.
func (s *Store) ExpireStale(cutoff time.Time, decision domain.Decision) []string {
	s.mu.RLock()
	var candidates []string
	for id, t := range s.tasks {
		if !t.Status.IsTerminal() && t.CreatedAt.Before(cutoff) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	expired := make([]string, 0, len(candidates))
	for _, id := range candidates {
		_, err := s.transition(id, decision, domain.StepTimedOut, "", func(t *domain.Task) bool {
			return t.CreatedAt.Before(cutoff)
		})
		if err != nil {
			// Завершилась или удалена параллельно
			continue
		}
		expired = append(expired, id)
	}
	return expired
}

// EvictFinished удаляет терминальные задачи, завершённые раньше cutoff.
// Возвращает количество удалённых записей.
func (s *Store) EvictFinished(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, t := range s.tasks {
		if t.FinishedAt != nil && t.Status.IsTerminal() && t.FinishedAt.Before(cutoff) {
			delete(s.tasks, id)
			evicted++
		}
	}
	return evicted
}
