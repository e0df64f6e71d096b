package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует конверты в очереди RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish сериализует конверт и публикует его в очередь как persistent сообщение.
// Возвращается только после подтверждения брокером; отказ брокера — ошибка.
func (p *Publisher) Publish(ctx context.Context, queue Queue, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	messageID := uuid.NewString()

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			"",            // default exchange
			string(queue), // routing key = имя очереди
			false,         // mandatory
			false,         // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    messageID,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s: %w", queue, err)
		}

		// Канал без confirm-режима подтверждений не даёт
		if confirm != nil {
			acked, err := confirm.WaitContext(ctx)
			if err != nil {
				return fmt.Errorf("await confirm from %s: %w", queue, err)
			}
			if !acked {
				return fmt.Errorf("%w: %s", ErrPublishNacked, queue)
			}
		}

		p.logger.Debug("published message",
			"queue", queue,
			"message_id", messageID,
			"bytes", len(body),
		)

		return nil
	})
}
