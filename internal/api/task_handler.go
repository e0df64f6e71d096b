package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/gateway"
	"github.com/shaiso/gradeflow/internal/repo"
	"github.com/shaiso/gradeflow/internal/store"
	"github.com/shaiso/gradeflow/internal/telemetry"
)

const (
	// maxRequestBytes ограничивает тело запроса с изображением в base64.
	maxRequestBytes = 20 << 20

	defaultListLimit = 50
	maxListLimit     = 500
)

// Root — баннер сервиса.
// GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "gradeflow gateway is running"})
}

// Evaluate принимает задачу на оценивание.
// POST /v1/evaluate
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	logger := telemetry.FromContext(r.Context())

	var req EvaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	taskID, err := h.service.Submit(r.Context(), req.ToDomain())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSubmission):
			BadRequest(w, err.Error())
		case errors.Is(err, gateway.ErrBrokerUnavailable):
			logger.Warn("submission rejected, broker unavailable", "task_id", taskID, "error", err)
			ServiceUnavailable(w, "Messaging service unavailable.")
		default:
			InternalError(w, logger, err)
		}
		return
	}

	JSON(w, http.StatusOK, EvaluateResponse{
		Message: "Evaluation started and queued.",
		TaskID:  taskID,
	})
}

// Status возвращает состояние задачи.
// GET /v1/status/{task_id}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Status(r.PathValue("task_id"))
	if HandleServiceError(w, telemetry.FromContext(r.Context()), err, "Task ID not found.") {
		return
	}

	JSON(w, http.StatusOK, StatusFromDomain(view))
}

// ListTasks возвращает задачи с фильтрацией.
// GET /v1/tasks?status=...&limit=...
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := store.Filter{}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.TaskStatus(status)
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
	}

	limit, ok := parseLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
	if !ok {
		BadRequest(w, "invalid limit")
		return
	}
	filter.Limit = limit

	tasks := h.service.List(filter)

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// TaskAudit возвращает журнал решений задачи.
// GET /v1/audit/{task_id}
func (h *Handler) TaskAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		NotFound(w, "decision audit is not enabled")
		return
	}

	entries, err := h.audit.ListByTask(r.Context(), r.PathValue("task_id"))
	if HandleServiceError(w, telemetry.FromContext(r.Context()), err, "no audit entries for task") {
		return
	}

	result := make([]AuditResponse, len(entries))
	for i, e := range entries {
		result[i] = AuditFromDomain(e)
	}

	List(w, result, len(result))
}

// notFound — ошибки «не найдено» всех слоёв.
func notFound(err error) bool {
	return errors.Is(err, gateway.ErrNotFound) || errors.Is(err, repo.ErrNotFound)
}
