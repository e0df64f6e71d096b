package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Loader читает переменные окружения с общим префиксом.
type Loader struct {
	Prefix string
}

// NewLoader создаёт Loader. К непустому префиксу добавляется "_".
func NewLoader(prefix string) Loader {
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return Loader{Prefix: prefix}
}

func (l Loader) lookup(key string) string {
	return strings.TrimSpace(os.Getenv(l.Prefix + key))
}

// String возвращает значение переменной или def.
func (l Loader) String(key, def string) string {
	if val := l.lookup(key); val != "" {
		return val
	}
	return def
}

// Int возвращает целое значение или def.
func (l Loader) Int(key string, def int) int {
	if val := l.lookup(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// Float возвращает дробное значение или def.
func (l Loader) Float(key string, def float64) float64 {
	if val := l.lookup(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

// Duration принимает "30s", "10m" или число секунд.
func (l Loader) Duration(key string, def time.Duration) time.Duration {
	val := l.lookup(key)
	if val == "" {
		return def
	}
	if parsed, err := time.ParseDuration(val); err == nil {
		return parsed
	}
	if parsed, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(parsed * float64(time.Second))
	}
	return def
}

// Bool возвращает логическое значение или def.
func (l Loader) Bool(key string, def bool) bool {
	if val := l.lookup(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

// List разбирает список через запятую. Пустые элементы отбрасываются.
func (l Loader) List(key string, def []string) []string {
	val := l.lookup(key)
	if val == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
