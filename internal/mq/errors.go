package mq

import "errors"

// Транспортные ошибки.
var (
	// ErrNoChannel — соединение с брокером потеряно, канала нет.
	ErrNoChannel = errors.New("no channel available")

	// ErrBrokerClosed — брокер закрыт.
	ErrBrokerClosed = errors.New("broker closed")

	// ErrPublishNacked — брокер отказался сохранить сообщение.
	ErrPublishNacked = errors.New("publish not confirmed by broker")
)
