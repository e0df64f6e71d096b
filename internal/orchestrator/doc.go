// Package orchestrator завершает задачи по результатам конвейера.
//
// Reconciler отвечает за:
//   - Получение оценённых конвертов из final-results-queue
//   - Сопоставление конверта с задачей по task_id
//   - Вызов policy и перевод задачи в COMPLETE или FAILED
//   - Игнорирование сирот и повторных доставок
//   - Запись решений в журнал аудита
//
// Сбой policy не оставляет задачу в нетерминальном статусе: он превращается
// в решение ERROR и статус FAILED.
package orchestrator
