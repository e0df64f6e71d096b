// Package repo — журнал решений в PostgreSQL.
//
// Состояние задач живёт только в памяти процесса; в БД попадает
// append-only журнал терминальных решений (таблица decision_audit)
// для разбора инцидентов после перезапуска. Журнал включается
// переменной AUDIT_DB_URL.
package repo
