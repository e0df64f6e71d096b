package api

import (
	"strconv"
	"time"

	"github.com/shaiso/gradeflow/internal/domain"
)

// Evaluate DTOs

// EvaluateRequest — запрос на оценивание.
type EvaluateRequest struct {
	ExamID         string `json:"exam_id"`
	RubricText     string `json:"rubric_text"`
	ImageB64       string `json:"image_b64"`
	TargetQuestion string `json:"target_question"`
}

// ToDomain конвертирует запрос в domain.Submission.
func (r EvaluateRequest) ToDomain() domain.Submission {
	return domain.Submission{
		ExamID:         r.ExamID,
		RubricText:     r.RubricText,
		ImageB64:       r.ImageB64,
		TargetQuestion: r.TargetQuestion,
	}
}

// EvaluateResponse — ответ на принятую задачу.
type EvaluateResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// Task DTOs

// StatusResponse — видимое клиенту состояние задачи.
type StatusResponse struct {
	Status domain.TaskStatus `json:"status"`
	Step   string            `json:"step"`
	Result *domain.Decision  `json:"result"`
}

// StatusFromDomain конвертирует domain.View в StatusResponse.
func StatusFromDomain(v domain.View) StatusResponse {
	return StatusResponse{
		Status: v.Status,
		Step:   v.Step,
		Result: v.Result,
	}
}

// TaskResponse — задача в административном списке. Изображение не возвращается.
type TaskResponse struct {
	TaskID         string            `json:"task_id"`
	ExamID         string            `json:"exam_id,omitempty"`
	TargetQuestion string            `json:"target_question"`
	Status         domain.TaskStatus `json:"status"`
	Step           string            `json:"step"`
	Result         *domain.Decision  `json:"result"`
	ProducerID     string            `json:"producer_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		TaskID:         t.ID,
		ExamID:         t.Submission.ExamID,
		TargetQuestion: t.Submission.TargetQuestion,
		Status:         t.Status,
		Step:           t.Step,
		Result:         t.Result,
		ProducerID:     t.ProducerID,
		CreatedAt:      t.CreatedAt,
		FinishedAt:     t.FinishedAt,
	}
}

// Audit DTOs

// AuditResponse — запись журнала решений.
type AuditResponse struct {
	TaskID          string            `json:"task_id"`
	ExamID          string            `json:"exam_id,omitempty"`
	TaskStatus      domain.TaskStatus `json:"task_status"`
	Decision        domain.Decision   `json:"decision"`
	ProducerID      string            `json:"producer_id"`
	AgentConfidence float64           `json:"agent_confidence"`
	DecidedAt       time.Time         `json:"decided_at"`
}

// AuditFromDomain конвертирует domain.AuditEntry в AuditResponse.
func AuditFromDomain(e domain.AuditEntry) AuditResponse {
	return AuditResponse{
		TaskID:          e.TaskID,
		ExamID:          e.ExamID,
		TaskStatus:      e.TaskStatus,
		Decision:        e.Decision,
		ProducerID:      e.ProducerID,
		AgentConfidence: e.AgentConfidence,
		DecidedAt:       e.DecidedAt,
	}
}

// parseLimit разбирает limit из query. Пустое значение — def.
func parseLimit(s string, def, max int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	if n == 0 || n > max {
		n = max
	}
	return n, true
}
