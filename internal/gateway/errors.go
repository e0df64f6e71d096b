package gateway

import "errors"

// Ошибки gateway.
var (
	// ErrBrokerUnavailable — первая публикация не удалась; задача записана как FAILED.
	ErrBrokerUnavailable = errors.New("message broker unavailable")

	// ErrNotFound — задача не найдена.
	ErrNotFound = errors.New("task not found")
)
