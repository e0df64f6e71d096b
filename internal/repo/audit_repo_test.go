package repo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/gradeflow/internal/domain"
)

func TestNewPool_EmptyDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "")
	if !errors.Is(err, ErrNoDSN) {
		t.Fatalf("expected ErrNoDSN, got %v", err)
	}
}

// Интеграционный тест: требует PostgreSQL в AUDIT_DB_URL.
func TestAuditRepo_RecordAndList(t *testing.T) {
	dsn := os.Getenv("AUDIT_DB_URL")
	if dsn == "" {
		t.Skip("AUDIT_DB_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	repo := NewAuditRepo(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	taskID := uuid.NewString()
	entry := domain.AuditEntry{
		TaskID:     taskID,
		ExamID:     "exam-1",
		TaskStatus: domain.TaskStatusComplete,
		Decision: domain.Decision{
			Status:     domain.DecisionApproved,
			FinalGrade: 7,
		},
		ProducerID:      "LLM_Grader_Agent_v1",
		AgentConfidence: 0.99,
		DecidedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := repo.ListByTask(ctx, taskID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Decision.Status != domain.DecisionApproved || got[0].ExamID != "exam-1" {
		t.Errorf("unexpected entries: %+v", got)
	}

	if _, err := repo.ListByTask(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
