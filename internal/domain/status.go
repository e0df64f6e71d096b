package domain

// TaskStatus — статус задачи оценивания.
//
// Жизненный цикл:
//
//	PENDING → AWAITING_VISION → AWAITING_GRADE → COMPLETE
//	        ↘                 ↘                ↘ FAILED
//
// Промежуточные переходы происходят в воркерах и оркестратором не наблюдаются,
// поэтому терминальный переход разрешён из любого нетерминального статуса.
type TaskStatus string

const (
	// TaskStatusPending — задача принята и опубликована в task-queue.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusAwaitingVision — задача ожидает распознавания текста.
	TaskStatusAwaitingVision TaskStatus = "AWAITING_VISION"

	// TaskStatusAwaitingGrade — задача ожидает оценки LLM.
	TaskStatusAwaitingGrade TaskStatus = "AWAITING_GRADE"

	// TaskStatusComplete — policy вынесла решение APPROVED или REJECTED.
	TaskStatusComplete TaskStatus = "COMPLETE"

	// TaskStatusFailed — решение ERROR, ошибка публикации или истёк срок.
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusComplete, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус известен.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAwaitingVision, TaskStatusAwaitingGrade,
		TaskStatusComplete, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода s → next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s.IsTerminal() {
		return false
	}

	switch next {
	case TaskStatusComplete, TaskStatusFailed:
		return true
	case TaskStatusAwaitingVision:
		return s == TaskStatusPending
	case TaskStatusAwaitingGrade:
		return s == TaskStatusPending || s == TaskStatusAwaitingVision
	default:
		return false
	}
}

// AllTaskStatuses возвращает все статусы в порядке жизненного цикла.
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusPending,
		TaskStatusAwaitingVision,
		TaskStatusAwaitingGrade,
		TaskStatusComplete,
		TaskStatusFailed,
	}
}

// DecisionStatus — итог policy.
type DecisionStatus string

const (
	DecisionApproved DecisionStatus = "APPROVED"
	DecisionRejected DecisionStatus = "REJECTED"
	DecisionError    DecisionStatus = "ERROR"
)

// IsValid проверяет, что статус решения известен.
func (s DecisionStatus) IsValid() bool {
	switch s {
	case DecisionApproved, DecisionRejected, DecisionError:
		return true
	default:
		return false
	}
}

// TaskStatus возвращает терминальный статус задачи для решения.
func (s DecisionStatus) TaskStatus() TaskStatus {
	switch s {
	case DecisionApproved, DecisionRejected:
		return TaskStatusComplete
	default:
		return TaskStatusFailed
	}
}

// Шаги, отображаемые клиенту в поле step.
const (
	StepQueued       = "Task Queued"
	StepPublishError = "Publish Error"
	StepComplete     = "Consensus Complete"
	StepTimedOut     = "Timed Out"
)
