package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/gateway"
)

// AuditReader читает журнал решений.
type AuditReader interface {
	ListByTask(ctx context.Context, taskID string) ([]domain.AuditEntry, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	service     *gateway.Service
	audit       AuditReader
	corsOrigins []string
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Service *gateway.Service

	// Audit (опционально; без него /v1/audit отвечает 404)
	Audit AuditReader

	// CORSOrigins — разрешённые Origin; пусто — CORS выключен.
	CORSOrigins []string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:     cfg.Service,
		audit:       cfg.Audit,
		corsOrigins: cfg.CORSOrigins,
		logger:      logger,
	}
}
