// Package scheduler периодически убирает хранилище задач.
//
// Sweeper по расписанию robfig/cron:
//   - переводит в FAILED задачи, не получившие результат за TASK_DEADLINE;
//   - удаляет завершённые задачи старше TASK_RETENTION;
//   - обновляет метрику задач по статусам.
//
// Структура:
//   - scheduler.go — Sweeper (Start, Stop, Sweep)
//   - cron.go      — разбор расписания
//
// Использование:
//
//	sweeper := scheduler.New(scheduler.Config{
//	    Store:     taskStore,
//	    Deadline:  10 * time.Minute,
//	    Retention: 24 * time.Hour,
//	    Logger:    logger,
//	})
//	if err := sweeper.Start(ctx); err != nil {
//	    logger.Error("failed to start sweeper", "error", err)
//	}
//	defer sweeper.Stop()
package scheduler
