package domain

import (
	"context"
	"time"
)

// AuditEntry — запись журнала решений. Пишется при каждом терминальном
// переходе: решении Reconciler, истечении срока и сбое первой публикации.
type AuditEntry struct {
	TaskID          string
	ExamID          string
	TaskStatus      TaskStatus
	Decision        Decision
	ProducerID      string
	AgentConfidence float64
	DecidedAt       time.Time
}

// AuditSink принимает записи журнала решений.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// NewAuditEntry собирает запись журнала по завершённой задаче и конверту,
// который её завершил. verdict == nil для переходов без результата конвейера
// (истечение срока, сбой публикации): уверенность тогда 0.
func NewAuditEntry(task *Task, verdict *GradedVerdict) AuditEntry {
	entry := AuditEntry{
		TaskID:     task.ID,
		ExamID:     task.Submission.ExamID,
		TaskStatus: task.Status,
		ProducerID: task.ProducerID,
		DecidedAt:  task.UpdatedAt,
	}
	if verdict != nil {
		entry.AgentConfidence = verdict.AgentConfidence
	}
	if task.Result != nil {
		entry.Decision = *task.Result
	}
	return entry
}
