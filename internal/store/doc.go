// Package store хранит состояние задач в памяти процесса.
//
// Store — единственный источник истины для статуса задач. В него пишут
// Gateway (создание) и Reconciliation Consumer (терминальный переход),
// читает Gateway (опрос статуса).
//
// Записи неизменяемы: любое изменение создаёт новую запись и атомарно
// подменяет указатель под мьютексом, поэтому читатель видит либо прежнее
// состояние, либо полное терминальное. Терминальный переход — compare-and-set
// по текущему статусу: повторное решение для завершённой задачи отклоняется
// с ErrAlreadyTerminal и ничего не меняет.
//
// Состояние не переживает рестарт процесса.
package store
