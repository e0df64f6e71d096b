// Package config читает настройки процессов из переменных окружения.
package config
