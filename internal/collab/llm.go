package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"text/template"
)

// Grade — результат оценивания ответа.
type Grade struct {
	Score         float64
	Justification string
	Feedback      string
	Confidence    float64
}

// Grader оценивает ответ студента по рубрике.
type Grader interface {
	Grade(ctx context.Context, rubric, answer string) (Grade, error)
}

// Message — сообщение chat completions API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest — запрос chat completions API.
type ChatRequest struct {
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	Temperature    float32   `json:"temperature"`
	ResponseFormat any       `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// LLMClient — клиент OpenAI-совместимого API (Groq, LM Studio, OpenAI).
type LLMClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// LLMConfig — конфигурация LLMClient.
type LLMConfig struct {
	BaseURL    string // например, https://api.groq.com/openai/v1
	APIKey     string
	Model      string
	HTTPClient *http.Client // опционально
}

// DefaultLLMModel — модель по умолчанию.
const DefaultLLMModel = "llama-3.1-8b-instant"

// NewLLMClient создаёт клиент.
func NewLLMClient(cfg LLMConfig) *LLMClient {
	model := cfg.Model
	if model == "" {
		model = DefaultLLMModel
	}
	return &LLMClient{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: newHTTPClient(cfg.HTTPClient),
	}
}

// Model возвращает имя модели.
func (c *LLMClient) Model() string {
	return c.model
}

const systemPrompt = "You are an exam evaluator specialized in outputting clean JSON."

var gradePrompt = template.Must(template.New("grade").Parse(`
You are an expert, unbiased exam evaluator. Your goal is to grade a student's answer
based on a provided rubric.

**SCORING RUBRIC (Max 10 Points):**
"{{ .Rubric }}"

**STUDENT'S ANSWER (Extracted by OCR):**
"{{ .Answer }}"

**INSTRUCTIONS:**
1. Analyze the STUDENT'S ANSWER and compare it against the SCORING RUBRIC.
2. Determine a fair score from 0 to 10.
3. Provide a concise justification for your score.
4. Provide constructive feedback for the student.
5. Return your evaluation as a clean JSON object with no external markdown or text:
{"score": <number>, "justification": "<string>", "feedback_for_student": "<string>"}
`))

// BuildPrompt рендерит пользовательский промпт оценивания.
func BuildPrompt(rubric, answer string) (string, error) {
	var buf bytes.Buffer
	err := gradePrompt.Execute(&buf, struct{ Rubric, Answer string }{rubric, answer})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

type gradePayload struct {
	Score              *float64 `json:"score"`
	Justification      string   `json:"justification"`
	FeedbackForStudent string   `json:"feedback_for_student"`
}

// Grade запрашивает оценку у LLM в режиме JSON-ответа.
func (c *LLMClient) Grade(ctx context.Context, rubric, answer string) (Grade, error) {
	if c.baseURL == "" {
		return Grade{}, fmt.Errorf("%w: LLM_URL is empty", ErrNotConfigured)
	}

	prompt, err := BuildPrompt(rubric, answer)
	if err != nil {
		return Grade{}, err
	}

	req := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var resp chatResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return Grade{}, err
	}
	if len(resp.Choices) == 0 {
		return Grade{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return ParseGrade(resp.Choices[0].Message.Content)
}

// ParseGrade разбирает JSON-оценку из ответа модели.
// Допускается обёртка в markdown-блок ```json ... ```.
func ParseGrade(content string) (Grade, error) {
	content = stripCodeFence(content)

	var p gradePayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return Grade{}, fmt.Errorf("%w: decode grade: %v", ErrMalformedResponse, err)
	}
	if p.Score == nil {
		return Grade{}, fmt.Errorf("%w: missing score", ErrMalformedResponse)
	}
	if math.IsNaN(*p.Score) || math.IsInf(*p.Score, 0) {
		return Grade{}, fmt.Errorf("%w: score is not a number", ErrMalformedResponse)
	}

	return Grade{
		Score:         *p.Score,
		Justification: p.Justification,
		Feedback:      p.FeedbackForStudent,
		Confidence:    1.0,
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeBaseURL(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimSuffix(u, "/")
	return strings.TrimSuffix(u, "/chat/completions")
}
