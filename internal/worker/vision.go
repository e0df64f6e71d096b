package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shaiso/gradeflow/internal/collab"
	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/telemetry"
)

// DefaultVisionAgentID — идентификатор стадии распознавания по умолчанию.
const DefaultVisionAgentID = "HWR_Agent_v1"

const defaultOCRTimeout = 30 * time.Second

// VisionStage извлекает текст ответа из изображения.
//
// task-queue → vision-results-queue.
type VisionStage struct {
	extractor collab.TextExtractor
	model     string
	agentID   string
	timeout   time.Duration
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// VisionConfig — конфигурация VisionStage.
type VisionConfig struct {
	Extractor collab.TextExtractor
	Model     string        // имя движка, если сервис его не вернул
	AgentID   string        // default: HWR_Agent_v1
	Timeout   time.Duration // default: 30s
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

// NewVisionStage создаёт стадию распознавания.
func NewVisionStage(cfg VisionConfig) *VisionStage {
	agentID := cfg.AgentID
	if agentID == "" {
		agentID = DefaultVisionAgentID
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOCRTimeout
	}
	model := cfg.Model
	if model == "" {
		model = "Tesseract (pytesseract)"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &VisionStage{
		extractor: cfg.Extractor,
		model:     model,
		agentID:   agentID,
		timeout:   timeout,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

func (s *VisionStage) Name() string     { return "vision" }
func (s *VisionStage) Input() mq.Queue  { return mq.QueueTasks }
func (s *VisionStage) Output() mq.Queue { return mq.QueueVisionResult }

// Process распознаёт текст. Тестовое изображение обходит OCR-сервис.
func (s *VisionStage) Process(ctx context.Context, body []byte) (*Result, error) {
	task, err := domain.Decode[domain.SubmissionMessage](body)
	if err != nil {
		return nil, err
	}

	data, confidence := s.extract(ctx, task)
	confidence = domain.ClampConfidence(confidence)

	verdict := domain.VisionVerdict{
		SchemaVersion:   domain.SchemaVersion,
		TaskID:          task.TaskID,
		AgentID:         s.agentID,
		AgentConfidence: confidence,
		OriginalTask:    *task,
		VerdictData:     data,
	}

	return &Result{TaskID: task.TaskID, Confidence: confidence, Envelope: verdict}, nil
}

func (s *VisionStage) extract(ctx context.Context, task *domain.SubmissionMessage) (domain.VisionData, float64) {
	data := domain.VisionData{OCRModelUsed: s.model}

	if task.IsSentinel() {
		data.ExtractedText = SentinelText
		return data, domain.ConfidenceSentinel
	}

	if s.extractor == nil {
		return ocrFailure(data, collab.ErrNotConfigured)
	}

	start := time.Now()
	ext, err := collab.Call(ctx, s.timeout, func(ctx context.Context) (collab.Extraction, error) {
		return s.extractor.Extract(ctx, task.ImageB64)
	})
	s.metrics.ObserveCollaborator("ocr", time.Since(start), err)

	if err != nil {
		telemetry.WithTaskID(s.logger, task.TaskID).Warn("ocr failed", "error", err)
		return ocrFailure(data, err)
	}

	if ext.Model != "" {
		data.OCRModelUsed = ext.Model
	}

	if strings.TrimSpace(ext.Text) == "" {
		data.ExtractedText = NoTextFound
		return data, domain.ConfidenceNoText
	}

	data.ExtractedText = ext.Text
	confidence := domain.ConfidenceOCRText
	if ext.Confidence > 0 {
		confidence = ext.Confidence
	}
	return data, confidence
}

func ocrFailure(data domain.VisionData, err error) (domain.VisionData, float64) {
	data.ExtractedText = ocrErrorPrefix + err.Error()
	data.Error = err.Error()
	return data, domain.ConfidenceFailed
}
