package store

import "errors"

// Ошибки хранилища задач.
var (
	// ErrNotFound — задача не найдена (чтение статуса).
	ErrNotFound = errors.New("task not found")

	// ErrUnknownTask — терминальный переход для задачи, которой нет в хранилище.
	ErrUnknownTask = errors.New("unknown task")

	// ErrDuplicateTask — задача с таким ID уже существует.
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrAlreadyTerminal — задача уже в терминальном статусе, решение не перезаписывается.
	ErrAlreadyTerminal = errors.New("task already terminal")

	// ErrInvalidTransition — переход не разрешён машиной состояний.
	ErrInvalidTransition = errors.New("invalid status transition")
)
