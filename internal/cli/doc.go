// Package cli реализует инструмент командной строки gradeflow.
//
// # Обзор
//
// CLI — клиентская утилита для работы с API шлюза.
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API шлюза: постановка задачи, опрос статуса,
// административный список задач и журнал решений.
//
//	client := cli.NewClient("http://localhost:8000")
//	resp, err := client.Evaluate(ctx, req)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения — в stderr:
// gradeflow task list --json | jq .
//
// ## Commands
//
// Группа task: submit, status, watch, list, audit.
// Фабрика NewTaskCmd принимает clientFn и outputFn — замыкания для
// ленивого создания Client и Output после парсинга PersistentFlags.
package cli
