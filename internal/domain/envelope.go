package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// SchemaVersion — текущая версия формата конвертов.
const SchemaVersion = 1

// Пороговые значения confidence для деградированных результатов.
const (
	ConfidenceSentinel = 0.99
	ConfidenceOCRText  = 0.90
	ConfidenceNoText   = 0.30
	ConfidenceFailed   = 0.10
	ConfidenceGraded   = 1.0
)

// ClampConfidence приводит значение к диапазону [0,1]. NaN превращается в 0.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c):
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// SubmissionMessage — конверт task-queue.
// Производитель: Gateway. Потребитель: Vision Worker.
type SubmissionMessage struct {
	SchemaVersion int    `json:"schema_version"`
	TaskID        string `json:"task_id"`
	Submission
}

// NewSubmissionMessage создаёт конверт для новой задачи.
func NewSubmissionMessage(taskID string, sub Submission) SubmissionMessage {
	return SubmissionMessage{
		SchemaVersion: SchemaVersion,
		TaskID:        taskID,
		Submission:    sub,
	}
}

// Validate проверяет обязательные поля конверта.
func (m *SubmissionMessage) Validate() error {
	if err := checkHeader(&m.SchemaVersion, m.TaskID); err != nil {
		return err
	}
	// Пустая рубрика допустима на этой стадии: грейдер превратит её в деградированный результат.
	if m.ImageB64 == "" {
		return fmt.Errorf("%w: missing image_b64", ErrMalformedMessage)
	}
	return nil
}

// VisionData — результат стадии распознавания.
type VisionData struct {
	ExtractedText string `json:"extracted_text"`
	BoundingBox   [4]int `json:"bounding_box"`
	OCRModelUsed  string `json:"ocr_model_used"`
	Error         string `json:"error,omitempty"`
}

// VisionVerdict — конверт vision-results-queue.
// Производитель: Vision Worker. Потребитель: Grading Worker.
type VisionVerdict struct {
	SchemaVersion   int               `json:"schema_version"`
	TaskID          string            `json:"task_id"`
	AgentID         string            `json:"agent_id"`
	AgentConfidence float64           `json:"agent_confidence"`
	OriginalTask    SubmissionMessage `json:"original_task"`
	VerdictData     VisionData        `json:"verdict_data"`
}

// Validate проверяет обязательные поля и корреляцию с вложенным конвертом.
func (v *VisionVerdict) Validate() error {
	if err := checkHeader(&v.SchemaVersion, v.TaskID); err != nil {
		return err
	}
	if err := checkProducer(v.AgentID, v.AgentConfidence); err != nil {
		return err
	}
	if v.OriginalTask.TaskID != v.TaskID {
		return fmt.Errorf("%w: original_task.task_id %q does not match %q",
			ErrMalformedMessage, v.OriginalTask.TaskID, v.TaskID)
	}
	return nil
}

// GradeData — результат стадии оценивания.
type GradeData struct {
	Score              float64 `json:"score"`
	Justification      string  `json:"justification"`
	FeedbackForStudent string  `json:"feedback_for_student"`
	Error              string  `json:"error,omitempty"`
}

// GradedVerdict — конверт final-results-queue.
// Производитель: Grading Worker. Потребитель: Reconciliation Consumer.
type GradedVerdict struct {
	SchemaVersion   int               `json:"schema_version"`
	TaskID          string            `json:"task_id"`
	AgentID         string            `json:"agent_id"`
	AgentConfidence float64           `json:"agent_confidence"`
	OriginalTask    SubmissionMessage `json:"original_task"`
	VisionVerdict   VisionVerdict     `json:"vision_verdict"`
	VerdictData     GradeData         `json:"verdict_data"`
}

// Validate проверяет обязательные поля и всю цепочку provenance.
func (g *GradedVerdict) Validate() error {
	if err := checkHeader(&g.SchemaVersion, g.TaskID); err != nil {
		return err
	}
	if err := checkProducer(g.AgentID, g.AgentConfidence); err != nil {
		return err
	}
	if g.OriginalTask.TaskID != g.TaskID {
		return fmt.Errorf("%w: original_task.task_id %q does not match %q",
			ErrMalformedMessage, g.OriginalTask.TaskID, g.TaskID)
	}
	if g.VisionVerdict.TaskID != g.TaskID {
		return fmt.Errorf("%w: vision_verdict.task_id %q does not match %q",
			ErrMalformedMessage, g.VisionVerdict.TaskID, g.TaskID)
	}
	if err := g.VisionVerdict.Validate(); err != nil {
		return fmt.Errorf("vision_verdict: %w", err)
	}
	return nil
}

// Decode парсит конверт и проверяет его. Любая ошибка оборачивает ErrMalformedMessage.
func Decode[T any, PT interface {
	*T
	Validate() error
}](body []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := PT(&v).Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

func checkHeader(version *int, taskID string) error {
	if *version == 0 {
		*version = SchemaVersion
	}
	if *version > SchemaVersion {
		return fmt.Errorf("%w: unsupported schema_version %d", ErrMalformedMessage, *version)
	}
	if strings.TrimSpace(taskID) == "" {
		return fmt.Errorf("%w: missing task_id", ErrMalformedMessage)
	}
	return nil
}

func checkProducer(agentID string, confidence float64) error {
	if agentID == "" {
		return fmt.Errorf("%w: missing agent_id", ErrMalformedMessage)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return fmt.Errorf("%w: agent_confidence %v out of [0,1]", ErrMalformedMessage, confidence)
	}
	return nil
}
