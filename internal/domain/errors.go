package domain

import (
	"errors"
	"strings"
)

// ErrMalformedMessage — конверт не парсится или в нём нет обязательных полей.
// Такие сообщения отклоняются без повторной доставки.
var ErrMalformedMessage = errors.New("malformed message")

// ErrInvalidSubmission — в запросе на оценивание нет обязательных полей.
var ErrInvalidSubmission = errors.New("invalid submission")

// FieldError перечисляет отсутствующие поля.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidSubmission
}
