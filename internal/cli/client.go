package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// Decision — решение policy по задаче.
type Decision struct {
	Status        string  `json:"status"`
	FinalGrade    float64 `json:"final_grade"`
	Justification string  `json:"justification"`
	Feedback      string  `json:"feedback"`
}

// StatusResponse — состояние задачи из API.
type StatusResponse struct {
	Status string    `json:"status"`
	Step   string    `json:"step"`
	Result *Decision `json:"result"`
}

// IsTerminal возвращает true для COMPLETE и FAILED.
func (s StatusResponse) IsTerminal() bool {
	return s.Status == "COMPLETE" || s.Status == "FAILED"
}

// EvaluateResponse — ответ на постановку задачи.
type EvaluateResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// TaskResponse — задача из административного списка.
type TaskResponse struct {
	TaskID         string    `json:"task_id"`
	ExamID         string    `json:"exam_id,omitempty"`
	TargetQuestion string    `json:"target_question"`
	Status         string    `json:"status"`
	Step           string    `json:"step"`
	Result         *Decision `json:"result"`
	ProducerID     string    `json:"producer_id,omitempty"`
	CreatedAt      string    `json:"created_at"`
	FinishedAt     string    `json:"finished_at,omitempty"`
}

// AuditResponse — запись журнала решений.
type AuditResponse struct {
	TaskID          string   `json:"task_id"`
	ExamID          string   `json:"exam_id,omitempty"`
	TaskStatus      string   `json:"task_status"`
	Decision        Decision `json:"decision"`
	ProducerID      string   `json:"producer_id"`
	AgentConfidence float64  `json:"agent_confidence"`
	DecidedAt       string   `json:"decided_at"`
}

// --- Request types ---

// EvaluateRequest — задача на оценивание.
type EvaluateRequest struct {
	ExamID         string `json:"exam_id,omitempty"`
	RubricText     string `json:"rubric_text"`
	ImageB64       string `json:"image_b64"`
	TargetQuestion string `json:"target_question"`
}

// ListTasksOpts — параметры фильтрации задач.
type ListTasksOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API шлюза gradeflow.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Evaluate ставит задачу в очередь.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	var resp EvaluateResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/evaluate", req, &resp)
	return &resp, err
}

// Status возвращает состояние задачи.
func (c *Client) Status(ctx context.Context, taskID string) (*StatusResponse, error) {
	var resp StatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/v1/status/"+url.PathEscape(taskID), nil, &resp)
	return &resp, err
}

// Watch опрашивает статус, пока задача не станет терминальной или не истечёт ctx.
// onPoll вызывается после каждого опроса.
func (c *Client) Watch(ctx context.Context, taskID string, interval time.Duration, onPoll func(*StatusResponse)) (*StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.Status(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if onPoll != nil {
			onPoll(status)
		}
		if status.IsTerminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, fmt.Errorf("task %s still %s: %w", taskID, status.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ListTasks возвращает задачи с фильтрацией.
func (c *Client) ListTasks(ctx context.Context, opts ListTasksOpts) ([]TaskResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var tasks []TaskResponse
	err := c.list(ctx, "/v1/tasks", params, &tasks)
	return tasks, err
}

// Audit возвращает журнал решений задачи.
func (c *Client) Audit(ctx context.Context, taskID string) ([]AuditResponse, error) {
	var entries []AuditResponse
	err := c.list(ctx, "/v1/audit/"+url.PathEscape(taskID), nil, &entries)
	return entries, err
}

// --- HTTP helpers ---

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	var lr listResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &lr); err != nil {
		return err
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
