package config

import (
	"fmt"
	"time"

	"github.com/shaiso/gradeflow/internal/mq"
)

// Режимы брокера.
const (
	BrokerAMQP   = "amqp"
	BrokerMemory = "memory"
)

// Common — настройки, общие для всех процессов.
type Common struct {
	Broker      string // amqp | memory
	RabbitMQURL string
}

// Gateway — настройки процесса gradeflow-gateway.
type Gateway struct {
	Common

	Port          string
	CORSOrigins   []string
	PolicyURL     string
	PolicyTimeout time.Duration
	PassScore     float64
	MinConfidence float64

	TaskDeadline  time.Duration
	TaskRetention time.Duration
	SweepSchedule string

	AuditDBURL string
}

// Vision — настройки процесса gradeflow-vision.
type Vision struct {
	Common

	Port       string
	OCRURL     string
	OCRTimeout time.Duration
	AgentID    string
}

// Grader — настройки процесса gradeflow-grader.
type Grader struct {
	Common

	Port       string
	LLMURL     string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration
	AgentID    string
}

// DefaultCORSOrigins — адреса dev-сервера фронтенда.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// LoadCommon читает общие настройки.
func LoadCommon() (Common, error) {
	env := NewLoader("")
	c := Common{
		Broker:      env.String("BROKER", BrokerAMQP),
		RabbitMQURL: env.String("RABBITMQ_URL", mq.DefaultURL()),
	}
	if c.Broker != BrokerAMQP && c.Broker != BrokerMemory {
		return Common{}, fmt.Errorf("%w: BROKER=%q (want %s or %s)", ErrInvalid, c.Broker, BrokerAMQP, BrokerMemory)
	}
	return c, nil
}

// LoadGateway читает настройки gateway.
func LoadGateway() (Gateway, error) {
	common, err := LoadCommon()
	if err != nil {
		return Gateway{}, err
	}

	env := NewLoader("")
	g := Gateway{
		Common:        common,
		Port:          env.String("API_PORT", "8000"),
		CORSOrigins:   env.List("CORS_ORIGINS", DefaultCORSOrigins),
		PolicyURL:     env.String("POLICY_URL", ""),
		PolicyTimeout: env.Duration("POLICY_TIMEOUT", 10*time.Second),
		PassScore:     env.Float("PASS_SCORE", 5),
		MinConfidence: env.Float("MIN_CONFIDENCE", 0.5),
		TaskDeadline:  env.Duration("TASK_DEADLINE", 10*time.Minute),
		TaskRetention: env.Duration("TASK_RETENTION", 24*time.Hour),
		SweepSchedule: env.String("SWEEP_SCHEDULE", "@every 30s"),
		AuditDBURL:    env.String("AUDIT_DB_URL", ""),
	}

	if g.MinConfidence < 0 || g.MinConfidence > 1 {
		return Gateway{}, fmt.Errorf("%w: MIN_CONFIDENCE=%v out of [0,1]", ErrInvalid, g.MinConfidence)
	}
	if g.TaskDeadline < 0 || g.TaskRetention < 0 {
		return Gateway{}, fmt.Errorf("%w: TASK_DEADLINE and TASK_RETENTION must be >= 0", ErrInvalid)
	}
	return g, nil
}

// LoadVision читает настройки стадии распознавания.
func LoadVision() (Vision, error) {
	common, err := LoadCommon()
	if err != nil {
		return Vision{}, err
	}

	env := NewLoader("")
	return Vision{
		Common:     common,
		Port:       env.String("WORKER_PORT", "8082"),
		OCRURL:     env.String("OCR_URL", ""),
		OCRTimeout: env.Duration("OCR_TIMEOUT", 30*time.Second),
		AgentID:    env.String("AGENT_ID", "HWR_Agent_v1"),
	}, nil
}

// LoadGrader читает настройки стадии оценивания.
func LoadGrader() (Grader, error) {
	common, err := LoadCommon()
	if err != nil {
		return Grader{}, err
	}

	env := NewLoader("")
	return Grader{
		Common:     common,
		Port:       env.String("WORKER_PORT", "8083"),
		LLMURL:     env.String("LLM_URL", "https://api.groq.com/openai/v1"),
		LLMAPIKey:  env.String("LLM_API_KEY", ""),
		LLMModel:   env.String("LLM_MODEL", "llama-3.1-8b-instant"),
		LLMTimeout: env.Duration("LLM_TIMEOUT", 60*time.Second),
		AgentID:    env.String("AGENT_ID", "LLM_Grader_Agent_v1"),
	}, nil
}
