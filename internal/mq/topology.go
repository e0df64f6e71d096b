package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Очереди конвейера. Публикация идёт через default exchange,
// routing key совпадает с именем очереди.
const (
	QueueTasks        Queue = "task-queue"
	QueueVisionResult Queue = "vision-results-queue"
	QueueFinalResult  Queue = "final-results-queue"
	QueueDeadLetter   Queue = "dlq.pipeline"
)

// ExchangeDLQ — обменник для отклонённых сообщений.
const ExchangeDLQ Exchange = "gradeflow.dlq"

// RoutingKeyDLQ — ключ, с которым отклонённые сообщения попадают в dlq.pipeline.
const RoutingKeyDLQ RoutingKey = "pipeline"

// PipelineQueues возвращает рабочие очереди в порядке прохождения задачи.
func PipelineQueues() []Queue {
	return []Queue{QueueTasks, QueueVisionResult, QueueFinalResult}
}

// SetupTopology объявляет обменник DLQ, очереди и привязки. Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Обменник для dead letters
		if err := ch.ExchangeDeclare(
			string(ExchangeDLQ), // name
			"direct",            // type
			true,                // durable
			false,               // auto-deleted
			false,               // internal
			false,               // no-wait
			nil,                 // arguments
		); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeDLQ, err)
		}

		// 2. Очереди
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. DLQ привязывается к обменнику
		if err := ch.QueueBind(
			string(QueueDeadLetter),
			string(RoutingKeyDLQ),
			string(ExchangeDLQ),
			false,
			nil,
		); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueDeadLetter, ExchangeDLQ, err)
		}

		return nil
	})
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Reject без requeue отправляет сообщение в dlq.pipeline
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
	}

	for _, q := range PipelineQueues() {
		if err := declareQueue(ch, q, dlqArgs); err != nil {
			return err
		}
	}

	return declareQueue(ch, QueueDeadLetter, nil)
}

func declareQueue(ch *amqp.Channel, name Queue, args amqp.Table) error {
	_, err := ch.QueueDeclare(
		string(name), // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		args,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Gradeflow RabbitMQ Topology:

    (default exchange)
    ├── task-queue            Gateway → Vision Worker        DLQ: dlq.pipeline
    ├── vision-results-queue  Vision Worker → Grading Worker DLQ: dlq.pipeline
    └── final-results-queue   Grading Worker → Reconciler    DLQ: dlq.pipeline

    gradeflow.dlq (direct)
    └── dlq.pipeline [routing: pipeline]
            Manual processing
  `
}
