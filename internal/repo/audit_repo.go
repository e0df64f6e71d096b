package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/gradeflow/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS decision_audit (
		id               UUID PRIMARY KEY,
		task_id          TEXT NOT NULL,
		exam_id          TEXT NOT NULL DEFAULT '',
		task_status      TEXT NOT NULL,
		decision_status  TEXT NOT NULL,
		final_grade      DOUBLE PRECISION NOT NULL,
		justification    TEXT NOT NULL DEFAULT '',
		feedback         TEXT NOT NULL DEFAULT '',
		producer_id      TEXT NOT NULL DEFAULT '',
		agent_confidence DOUBLE PRECISION NOT NULL,
		decided_at       TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS decision_audit_task_id_idx ON decision_audit (task_id);
`

// AuditRepo — репозиторий журнала решений.
type AuditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo создаёт новый AuditRepo.
func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// EnsureSchema создаёт таблицу журнала, если её нет.
func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create decision_audit: %w", err)
	}
	return nil
}

// Record добавляет запись в журнал.
func (r *AuditRepo) Record(ctx context.Context, e domain.AuditEntry) error {
	query := `
		INSERT INTO decision_audit (id, task_id, exam_id, task_status, decision_status, final_grade,
		                            justification, feedback, producer_id, agent_confidence, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		uuid.New(),
		e.TaskID,
		e.ExamID,
		string(e.TaskStatus),
		string(e.Decision.Status),
		e.Decision.FinalGrade,
		e.Decision.Justification,
		e.Decision.Feedback,
		e.ProducerID,
		e.AgentConfidence,
		e.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision audit: %w", err)
	}
	return nil
}

// ListByTask возвращает записи журнала задачи от старых к новым.
func (r *AuditRepo) ListByTask(ctx context.Context, taskID string) ([]domain.AuditEntry, error) {
	query := `
		SELECT task_id, exam_id, task_status, decision_status, final_grade,
		       justification, feedback, producer_id, agent_confidence, decided_at
		FROM decision_audit
		WHERE task_id = $1
		ORDER BY decided_at ASC
	`
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("list decision audit: %w", err)
	}
	defer rows.Close()

	entries, err := pgx.CollectRows(rows, scanAuditEntry)
	if err != nil {
		return nil, fmt.Errorf("scan decision audit: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: audit for %s", ErrNotFound, taskID)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.CollectableRow) (domain.AuditEntry, error) {
	var e domain.AuditEntry
	var taskStatus, decisionStatus string
	err := row.Scan(
		&e.TaskID,
		&e.ExamID,
		&taskStatus,
		&decisionStatus,
		&e.Decision.FinalGrade,
		&e.Decision.Justification,
		&e.Decision.Feedback,
		&e.ProducerID,
		&e.AgentConfidence,
		&e.DecidedAt,
	)
	e.TaskStatus = domain.TaskStatus(taskStatus)
	e.Decision.Status = domain.DecisionStatus(decisionStatus)
	return e, err
}
