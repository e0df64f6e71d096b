package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestLogger(h.logger),
		Recovery(),
		Logging(),
		CORS(h.corsOrigins),
	)

	mux.Handle("GET /{$}", chain(http.HandlerFunc(h.Root)))

	// Evaluation
	mux.Handle("POST /v1/evaluate", chain(http.HandlerFunc(h.Evaluate)))
	mux.Handle("OPTIONS /v1/evaluate", chain(http.NotFoundHandler()))
	mux.Handle("GET /v1/status/{task_id}", chain(http.HandlerFunc(h.Status)))

	// Administration
	mux.Handle("GET /v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("GET /v1/audit/{task_id}", chain(http.HandlerFunc(h.TaskAudit)))
}
