// Package mq предоставляет канал сообщений между стадиями конвейера.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, publisher confirms, graceful shutdown)
//   - topology.go   — объявление очередей и dead-letter обменника
//   - publisher.go  — публикация конвертов с подтверждением брокера
//   - consumer.go   — потребление с prefetch = 1 и решениями Ack/Reject/Requeue
//   - broker.go     — интерфейс Broker и реализация поверх RabbitMQ
//   - memory.go     — Broker в памяти процесса (локальный режим и тесты)
//
// Очереди:
//   - task-queue           — Gateway → Vision Worker
//   - vision-results-queue — Vision Worker → Grading Worker
//   - final-results-queue  — Grading Worker → Reconciliation Consumer
//   - dlq.pipeline         — отклонённые сообщения (через gradeflow.dlq)
package mq
