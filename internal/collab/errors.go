package collab

import "errors"

// Ошибки внешних сервисов. Стадии конвейера никогда не пробрасывают их дальше:
// они превращаются в деградированный результат или решение ERROR.
var (
	// ErrCollaborator — вызов завершился ошибкой (сеть, non-2xx).
	ErrCollaborator = errors.New("collaborator call failed")

	// ErrTimeout — вызов не уложился в отведённое время.
	ErrTimeout = errors.New("collaborator call timed out")

	// ErrMalformedResponse — ответ не удалось разобрать.
	ErrMalformedResponse = errors.New("malformed collaborator response")

	// ErrNotConfigured — адрес сервиса не задан.
	ErrNotConfigured = errors.New("collaborator not configured")
)
