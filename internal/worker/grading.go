package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shaiso/gradeflow/internal/collab"
	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/telemetry"
)

// DefaultGradingAgentID — идентификатор стадии оценивания по умолчанию.
const DefaultGradingAgentID = "LLM_Grader_Agent_v1"

const defaultLLMTimeout = 60 * time.Second

// Тестовая оценка для тестового изображения.
const (
	sentinelScore         = 7
	sentinelJustification = "Placeholder grade for the test submission."
	sentinelFeedback      = "This is a placeholder evaluation."
)

// GradingStage оценивает распознанный ответ по рубрике.
//
// vision-results-queue → final-results-queue.
type GradingStage struct {
	grader  collab.Grader
	agentID string
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// GradingConfig — конфигурация GradingStage.
type GradingConfig struct {
	Grader  collab.Grader
	AgentID string        // default: LLM_Grader_Agent_v1
	Timeout time.Duration // default: 60s
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewGradingStage создаёт стадию оценивания.
func NewGradingStage(cfg GradingConfig) *GradingStage {
	agentID := cfg.AgentID
	if agentID == "" {
		agentID = DefaultGradingAgentID
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GradingStage{
		grader:  cfg.Grader,
		agentID: agentID,
		timeout: timeout,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

func (s *GradingStage) Name() string     { return "grading" }
func (s *GradingStage) Input() mq.Queue  { return mq.QueueVisionResult }
func (s *GradingStage) Output() mq.Queue { return mq.QueueFinalResult }

// Process оценивает ответ. Пустая рубрика или текст дают деградированный
// результат, а не потерю задачи.
func (s *GradingStage) Process(ctx context.Context, body []byte) (*Result, error) {
	vision, err := domain.Decode[domain.VisionVerdict](body)
	if err != nil {
		return nil, err
	}

	data, confidence := s.grade(ctx, vision)
	confidence = domain.ClampConfidence(confidence)

	verdict := domain.GradedVerdict{
		SchemaVersion:   domain.SchemaVersion,
		TaskID:          vision.TaskID,
		AgentID:         s.agentID,
		AgentConfidence: confidence,
		OriginalTask:    vision.OriginalTask,
		VisionVerdict:   *vision,
		VerdictData:     data,
	}

	return &Result{TaskID: vision.TaskID, Confidence: confidence, Envelope: verdict}, nil
}

func (s *GradingStage) grade(ctx context.Context, vision *domain.VisionVerdict) (domain.GradeData, float64) {
	logger := telemetry.WithTaskID(s.logger, vision.TaskID)

	if vision.OriginalTask.IsSentinel() {
		return domain.GradeData{
			Score:              sentinelScore,
			Justification:      sentinelJustification,
			FeedbackForStudent: sentinelFeedback,
		}, domain.ConfidenceSentinel
	}

	rubric := strings.TrimSpace(vision.OriginalTask.RubricText)
	answer := strings.TrimSpace(vision.VerdictData.ExtractedText)
	if rubric == "" || answer == "" {
		logger.Warn("missing rubric_text or extracted_text")
		msg := "missing rubric_text or extracted_text"
		return domain.GradeData{
			Justification:      msg,
			FeedbackForStudent: feedbackMissingInput,
			Error:              msg,
		}, domain.ConfidenceFailed
	}

	if s.grader == nil {
		return llmFailure(collab.ErrNotConfigured)
	}

	start := time.Now()
	g, err := collab.Call(ctx, s.timeout, func(ctx context.Context) (collab.Grade, error) {
		return s.grader.Grade(ctx, rubric, answer)
	})
	s.metrics.ObserveCollaborator("llm", time.Since(start), err)

	if err != nil {
		logger.Warn("llm grading failed", "error", err)
		return llmFailure(err)
	}

	confidence := g.Confidence
	if confidence <= 0 {
		confidence = domain.ConfidenceGraded
	}

	return domain.GradeData{
		Score:              g.Score,
		Justification:      g.Justification,
		FeedbackForStudent: g.Feedback,
	}, confidence
}

func llmFailure(err error) (domain.GradeData, float64) {
	data := domain.GradeData{
		Justification:      llmErrorPrefix + err.Error(),
		FeedbackForStudent: feedbackAPIError,
		Error:              err.Error(),
	}
	if errors.Is(err, collab.ErrMalformedResponse) {
		data.Justification = llmJSONErrorPrefix + err.Error()
		data.FeedbackForStudent = feedbackProcessingError
	}
	return data, domain.ConfidenceFailed
}
