package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/gradeflow/internal/collab"
	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/store"
	"github.com/shaiso/gradeflow/internal/telemetry"
)

// handleGradedResult обрабатывает конверт из final-results-queue.
//
// Сирота (задачи нет) и повтор (задача уже завершена) подтверждаются без
// вызова policy: повторная доставка ничего не изменит.
func (r *Reconciler) handleGradedResult(ctx context.Context, d *mq.Delivery) mq.Outcome {
	verdict, err := domain.Decode[domain.GradedVerdict](d.Body)
	if err != nil {
		r.logger.Warn("rejecting malformed graded verdict",
			"message_id", d.MessageID,
			"error", err,
		)
		r.metrics.StageMessage("reconcile", mq.Reject.String())
		return mq.Reject
	}

	logger := telemetry.WithTaskID(r.logger, verdict.TaskID)

	task, err := r.store.Get(verdict.TaskID)
	if err != nil {
		logger.Warn("orphaned graded verdict, acking", "agent_id", verdict.AgentID)
		r.metrics.OrphanResult()
		r.metrics.StageMessage("reconcile", mq.Ack.String())
		return mq.Ack
	}
	if task.Status.IsTerminal() {
		logger.Info("duplicate graded verdict ignored", "status", task.Status)
		r.metrics.DuplicateResult()
		r.metrics.StageMessage("reconcile", mq.Ack.String())
		return mq.Ack
	}

	decision := r.decide(ctx, verdict)
	if ctx.Err() != nil {
		// Остановка во время вызова policy: решение не фиксируем, сообщение вернётся в очередь
		logger.Info("shutdown during policy call, requeueing", "error", ctx.Err())
		r.metrics.StageMessage("reconcile", mq.Requeue.String())
		return mq.Requeue
	}

	updated, err := r.store.TransitionTerminal(verdict.TaskID, decision, verdict.AgentID)
	switch {
	case errors.Is(err, store.ErrAlreadyTerminal):
		// Задачу завершил sweeper, пока шёл вызов policy
		logger.Info("task finished concurrently, verdict ignored", "status", updated.Status)
		r.metrics.DuplicateResult()
	case errors.Is(err, store.ErrUnknownTask):
		logger.Warn("task evicted before transition", "error", err)
		r.metrics.OrphanResult()
	case err != nil:
		logger.Error("terminal transition failed", "error", err)
	default:
		logger.Info("task finished",
			"status", updated.Status,
			"decision", decision.Status,
			"final_grade", decision.FinalGrade,
		)
		r.metrics.TaskTerminal(string(updated.Status), string(decision.Status))
		r.record(ctx, updated, verdict)
	}

	r.metrics.StageMessage("reconcile", mq.Ack.String())
	return mq.Ack
}

// decide вызывает policy. Любой сбой превращается в решение ERROR,
// чтобы задача всё равно дошла до терминального статуса.
func (r *Reconciler) decide(ctx context.Context, verdict *domain.GradedVerdict) domain.Decision {
	if r.policy == nil {
		return domain.ErrorDecision("Policy Error: "+collab.ErrNotConfigured.Error(), policyFailureFeedback)
	}

	start := time.Now()
	decision, err := collab.Call(ctx, r.policyTimeout, func(ctx context.Context) (domain.Decision, error) {
		return r.policy.Decide(ctx, verdict)
	})
	r.metrics.ObserveCollaborator("policy", time.Since(start), err)

	if err != nil {
		telemetry.WithTaskID(r.logger, verdict.TaskID).Warn("policy call failed", "error", err)
		return domain.ErrorDecision(fmt.Sprintf("Policy Error: %v", err), policyFailureFeedback)
	}
	return decision
}

const policyFailureFeedback = "Failed to get final evaluation from policy engine."

// record пишет решение в журнал аудита. Ошибка журнала не влияет на переход.
func (r *Reconciler) record(ctx context.Context, task *domain.Task, verdict *domain.GradedVerdict) {
	if r.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, defaultAuditTimeout)
	defer cancel()

	if err := r.audit.Record(ctx, domain.NewAuditEntry(task, verdict)); err != nil {
		telemetry.WithTaskID(r.logger, task.ID).Warn("failed to write decision audit", "error", err)
	}
}
