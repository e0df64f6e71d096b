package config

import "errors"

// ErrInvalid — значение переменной окружения недопустимо.
var ErrInvalid = errors.New("invalid configuration")
