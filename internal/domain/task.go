package domain

import (
	"strings"
	"time"
)

// SentinelImage — зарезервированное значение image_b64 для интеграционных тестов.
// Стадии отвечают на него фиксированным результатом, не вызывая внешние сервисы.
const SentinelImage = "test"

// Submission — входные данные задачи. Неизменяемы после создания.
type Submission struct {
	ExamID         string `json:"exam_id,omitempty"`
	RubricText     string `json:"rubric_text"`
	ImageB64       string `json:"image_b64"`
	TargetQuestion string `json:"target_question"`
}

// Validate проверяет обязательные поля.
func (s Submission) Validate() error {
	var missing []string
	if strings.TrimSpace(s.RubricText) == "" {
		missing = append(missing, "rubric_text")
	}
	if s.ImageB64 == "" {
		missing = append(missing, "image_b64")
	}
	if strings.TrimSpace(s.TargetQuestion) == "" {
		missing = append(missing, "target_question")
	}
	if len(missing) > 0 {
		return &FieldError{Fields: missing}
	}
	return nil
}

// IsSentinel возвращает true для тестового входа.
func (s Submission) IsSentinel() bool {
	return s.ImageB64 == SentinelImage
}

// Decision — решение policy по оценённой задаче.
// Записывается в Task.Result один раз.
type Decision struct {
	Status        DecisionStatus `json:"status"`
	FinalGrade    float64        `json:"final_grade"`
	Justification string         `json:"justification"`
	Feedback      string         `json:"feedback"`
}

// ErrorDecision строит решение ERROR с описанием причины.
func ErrorDecision(justification, feedback string) Decision {
	return Decision{
		Status:        DecisionError,
		FinalGrade:    0,
		Justification: justification,
		Feedback:      feedback,
	}
}

// Task — один запрос на оценивание от отправки до финального решения.
type Task struct {
	// ID — ключ корреляции для всех конвертов задачи.
	ID string `json:"task_id"`

	// Submission — исходные данные.
	Submission Submission `json:"submission"`

	// Status — текущий статус.
	Status TaskStatus `json:"status"`

	// Step — человекочитаемый шаг (для клиента).
	Step string `json:"step"`

	// Result — решение, заполняется только при переходе в COMPLETE или FAILED.
	Result *Decision `json:"result"`

	// ProducerID — агент, выпустивший оценку (для аудита).
	ProducerID string `json:"producer_id,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// IsFinished возвращает true, если задача в терминальном статусе.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// Clone возвращает копию без общих указателей.
func (t *Task) Clone() *Task {
	c := *t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	if t.FinishedAt != nil {
		f := *t.FinishedAt
		c.FinishedAt = &f
	}
	return &c
}

// View — то, что видит клиент при опросе статуса.
type View struct {
	Status TaskStatus `json:"status"`
	Step   string     `json:"step"`
	Result *Decision  `json:"result"`
}

// View возвращает клиентское представление задачи.
func (t *Task) View() View {
	v := View{Status: t.Status, Step: t.Step}
	if t.Result != nil {
		r := *t.Result
		v.Result = &r
	}
	return v
}
