package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// MemoryBroker — Broker в памяти процесса.
//
// Используется в локальном режиме (BROKER=memory), когда все стадии работают
// в одном процессе, и в тестах. Семантика совпадает с AMQPBroker:
// FIFO, последовательная обработка, Requeue возвращает сообщение в голову очереди,
// Reject перекладывает его в dead letters.
type MemoryBroker struct {
	logger *slog.Logger

	mu       sync.Mutex
	queues   map[Queue]*memQueue
	dead     []Delivery
	closed   bool
	closedCh chan struct{}
}

type memQueue struct {
	items  []Delivery
	notify chan struct{}
}

// NewMemoryBroker создаёт пустой MemoryBroker.
func NewMemoryBroker(logger *slog.Logger) *MemoryBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBroker{
		logger:   logger,
		queues:   make(map[Queue]*memQueue),
		closedCh: make(chan struct{}),
	}
}

// queueLocked возвращает очередь, создавая её при необходимости. Вызывать под mu.
func (b *MemoryBroker) queueLocked(name Queue) *memQueue {
	q, ok := b.queues[name]
	if !ok {
		q = &memQueue{notify: make(chan struct{}, 1)}
		b.queues[name] = q
	}
	return q
}

// Publish сериализует конверт и кладёт его в хвост очереди.
func (b *MemoryBroker) Publish(ctx context.Context, queue Queue, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("publish to %s: %w", queue, ErrBrokerClosed)
	}
	q := b.queueLocked(queue)
	q.items = append(q.items, Delivery{
		Queue:     queue,
		MessageID: uuid.NewString(),
		Body:      body,
	})
	b.mu.Unlock()

	wake(q)

	b.logger.Debug("published message", "queue", queue, "bytes", len(body))
	return nil
}

// PublishRaw кладёт в очередь тело как есть (для тестов с повреждёнными сообщениями).
func (b *MemoryBroker) PublishRaw(queue Queue, body []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	q := b.queueLocked(queue)
	q.items = append(q.items, Delivery{Queue: queue, MessageID: uuid.NewString(), Body: body})
	b.mu.Unlock()

	wake(q)
	return nil
}

// Consume обрабатывает сообщения очереди по одному, пока не отменён ctx
// или брокер не закрыт.
func (b *MemoryBroker) Consume(ctx context.Context, queue Queue, handler Handler) error {
	b.mu.Lock()
	q := b.queueLocked(queue)
	b.mu.Unlock()

	for {
		d, ok, err := b.pop(q)
		if err != nil {
			return err
		}

		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-b.closedCh:
				return ErrBrokerClosed
			case <-q.notify:
				continue
			}
		}

		if ctx.Err() != nil {
			// Сообщение не обработано — возвращаем его в очередь
			b.requeue(q, d)
			return ctx.Err()
		}

		switch outcome := handler(ctx, &d); outcome {
		case Ack:
		case Requeue:
			b.requeue(q, d)
		default:
			b.mu.Lock()
			b.dead = append(b.dead, d)
			b.mu.Unlock()
			b.logger.Debug("message dead-lettered", "queue", queue, "message_id", d.MessageID)
		}
	}
}

func (b *MemoryBroker) pop(q *memQueue) (Delivery, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Delivery{}, false, ErrBrokerClosed
	}
	if len(q.items) == 0 {
		return Delivery{}, false, nil
	}

	d := q.items[0]
	q.items = q.items[1:]
	return d, true, nil
}

func (b *MemoryBroker) requeue(q *memQueue, d Delivery) {
	d.Redelivered = true

	b.mu.Lock()
	q.items = append([]Delivery{d}, q.items...)
	b.mu.Unlock()

	wake(q)
}

func wake(q *memQueue) {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len возвращает количество сообщений, ожидающих в очереди.
func (b *MemoryBroker) Len(queue Queue) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queueLocked(queue).items)
}

// DeadLetters возвращает копию отклонённых сообщений.
func (b *MemoryBroker) DeadLetters() []Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Delivery, len(b.dead))
	copy(out, b.dead)
	return out
}

// Close закрывает брокер: публикации завершаются ErrBrokerClosed, consumers выходят.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.closedCh)
	return nil
}
