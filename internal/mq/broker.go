package mq

import (
	"context"
	"log/slog"
)

// Broker — publish/consume поверх именованных durable очередей.
//
// Реализации: AMQPBroker (RabbitMQ) и MemoryBroker (всё в одном процессе).
type Broker interface {
	// Publish публикует конверт. Ошибка публикации всегда возвращается вызывающему.
	Publish(ctx context.Context, queue Queue, msg any) error

	// Consume вызывает handler для каждого сообщения очереди по одному (prefetch = 1).
	// Блокируется до отмены ctx.
	Consume(ctx context.Context, queue Queue, handler Handler) error
}

// AMQPBroker — Broker поверх RabbitMQ.
type AMQPBroker struct {
	conn      *Connection
	publisher *Publisher
	logger    *slog.Logger
}

// NewAMQPBroker создаёт Broker поверх открытого соединения.
func NewAMQPBroker(conn *Connection, logger *slog.Logger) *AMQPBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPBroker{
		conn:      conn,
		publisher: NewPublisher(conn, logger),
		logger:    logger,
	}
}

// Publish публикует конверт с подтверждением брокера.
func (b *AMQPBroker) Publish(ctx context.Context, queue Queue, msg any) error {
	return b.publisher.Publish(ctx, queue, msg)
}

// Consume запускает consumer с prefetch = 1.
func (b *AMQPBroker) Consume(ctx context.Context, queue Queue, handler Handler) error {
	consumer := NewConsumer(b.conn, b.logger, ConsumerConfig{
		Queue:    queue,
		Handler:  handler,
		Prefetch: 1,
	})
	return consumer.Start(ctx)
}

// Connection возвращает соединение (для health-check).
func (b *AMQPBroker) Connection() *Connection {
	return b.conn
}
