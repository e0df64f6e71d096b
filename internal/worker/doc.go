// Package worker реализует стадии конвейера оценивания.
//
// # Обзор
//
// Worker — stateless компонент, который читает одну очередь, выполняет
// вычисление стадии и публикует результат в следующую очередь:
//
//	task-queue → VisionStage → vision-results-queue → GradingStage → final-results-queue
//
// Сообщения обрабатываются строго по одному (prefetch = 1). Несколько экземпляров
// одной стадии могут читать одну очередь.
//
// # Ключевые компоненты
//
// ## Worker
//
// Общий цикл обработки. Создаётся через New(cfg Config), запускается Start(ctx):
//
//	w := worker.New(worker.Config{
//	    Broker: broker,
//	    Stage:  worker.NewVisionStage(worker.VisionConfig{Extractor: ocr}),
//	    Logger: logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// ## Stage
//
// Вычисление стадии:
//
//	type Stage interface {
//	    Name() string
//	    Input() mq.Queue
//	    Output() mq.Queue
//	    Process(ctx context.Context, body []byte) (*Result, error)
//	}
//
// Реализации:
//   - VisionStage — распознавание текста (OCR), agent_id HWR_Agent_v1
//   - GradingStage — оценивание по рубрике (LLM), agent_id LLM_Grader_Agent_v1
//
// # Обработка сообщения
//
//  1. Декодирование и проверка конверта; некорректный → Reject (в DLQ)
//  2. Тестовое изображение ("test") → заготовленный результат без внешнего вызова
//  3. Вызов внешнего сервиса с таймаутом
//  4. Сборка выходного конверта с вложенным входным
//  5. Публикация; ошибка → Requeue после паузы
//  6. Ack только после подтверждённой публикации
//
// # Ошибки
//
// Сбой внешнего сервиса не прерывает цикл и не теряет задачу: он превращается
// в деградированный результат с текстом ошибки и confidence 0.10.
//
//	| Ситуация               | confidence |
//	|------------------------|------------|
//	| тестовое изображение   | 0.99       |
//	| текст распознан        | 0.90       |
//	| текст не найден        | 0.30       |
//	| ошибка сервиса/таймаут | 0.10       |
//	| оценка LLM получена    | 1.0        |
package worker
