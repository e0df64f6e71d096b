package worker

import (
	"context"
	"time"

	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/telemetry"
)

// handle обрабатывает одно сообщение входной очереди.
//
//   - некорректный конверт → Reject (в DLQ, без повторной доставки);
//   - публикация не удалась → Requeue (дубликат лучше потерянной задачи);
//   - иначе → Ack только после подтверждённой публикации.
func (w *Worker) handle(ctx context.Context, d *mq.Delivery) mq.Outcome {
	outcome := w.process(ctx, d)
	w.metrics.StageMessage(w.stage.Name(), outcome.String())
	return outcome
}

func (w *Worker) process(ctx context.Context, d *mq.Delivery) mq.Outcome {
	result, err := w.stage.Process(ctx, d.Body)
	if err != nil {
		w.logger.Warn("rejecting malformed message",
			"message_id", d.MessageID,
			"redelivered", d.Redelivered,
			"error", err,
		)
		return mq.Reject
	}

	logger := telemetry.WithTaskID(w.logger, result.TaskID)

	if err := w.broker.Publish(ctx, w.stage.Output(), result.Envelope); err != nil {
		w.metrics.PublishFailed(string(w.stage.Output()))
		logger.Warn("failed to publish stage result, requeueing",
			"output", w.stage.Output(),
			"error", err,
		)

		// Пауза, чтобы не крутить повторную доставку, пока брокер недоступен
		select {
		case <-time.After(w.requeueDelay):
		case <-ctx.Done():
		}
		return mq.Requeue
	}

	logger.Info("stage result published",
		"output", w.stage.Output(),
		"confidence", result.Confidence,
	)
	return mq.Ack
}
