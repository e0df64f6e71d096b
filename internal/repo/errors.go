package repo

import "errors"

// Ошибки журнала решений.
var (
	// ErrNoDSN — строка подключения не задана.
	ErrNoDSN = errors.New("empty database dsn")

	// ErrNotFound — записи не найдены.
	ErrNotFound = errors.New("not found")
)
