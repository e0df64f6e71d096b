// Package api содержит HTTP API шлюза.
//
// Структура:
//   - handler.go      — Handler с DI (gateway.Service, журнал решений, logger)
//   - routes.go       — регистрация маршрутов
//   - middleware.go   — middleware (request logger, logging, recovery, CORS)
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — Data Transfer Objects (request/response)
//   - task_handler.go — обработчики /v1/evaluate, /v1/status, /v1/tasks, /v1/audit
//
// Ответ на POST /v1/evaluate означает только «задача поставлена в очередь».
// Результат клиент получает опросом GET /v1/status/{task_id}.
package api
