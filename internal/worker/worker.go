package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultRequeueDelay = time.Second
)

// Stage — вычисление одной стадии конвейера.
type Stage interface {
	// Name — имя стадии для логов и метрик.
	Name() string

	// Input — очередь, из которой стадия читает.
	Input() mq.Queue

	// Output — очередь, в которую стадия публикует результат.
	Output() mq.Queue

	// Process превращает входной конверт в выходной.
	// Ошибка возвращается только для некорректного конверта (domain.ErrMalformedMessage);
	// сбои внешних сервисов превращаются в деградированный результат.
	Process(ctx context.Context, body []byte) (*Result, error)
}

// Result — выходной конверт стадии.
type Result struct {
	TaskID     string
	Confidence float64
	Envelope   any
}

// Worker запускает Stage поверх Broker.
//
// Worker — stateless компонент: единственное его состояние — подписка на очередь.
// Сообщения обрабатываются по одному (prefetch = 1), несколько экземпляров
// одной стадии могут читать одну очередь.
type Worker struct {
	broker  mq.Broker
	stage   Stage
	metrics *telemetry.Metrics

	requeueDelay time.Duration

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Broker mq.Broker
	Stage  Stage

	// Metrics (опционально)
	Metrics *telemetry.Metrics

	// RequeueDelay — пауза перед возвратом сообщения в очередь после
	// неудачной публикации (default: 1s).
	RequeueDelay time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	requeueDelay := cfg.RequeueDelay
	if requeueDelay <= 0 {
		requeueDelay = defaultRequeueDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithStage(logger, cfg.Stage.Name(), string(cfg.Stage.Input()))

	return &Worker{
		broker:       cfg.Broker,
		stage:        cfg.Stage,
		metrics:      cfg.Metrics,
		requeueDelay: requeueDelay,
		logger:       logger,
	}
}

// Start запускает consumer входной очереди в отдельной горутине.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker", "output", w.stage.Output())

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		err := w.broker.Consume(ctx, w.stage.Input(), w.handle)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, mq.ErrBrokerClosed) {
			w.logger.Error("stage consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения обработки текущего сообщения.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
