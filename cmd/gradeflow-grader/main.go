// gradeflow-grader — стадия оценивания распознанного ответа.
//
// Worker:
//   - Получает распознанный текст из vision-results-queue
//   - Оценивает его по рубрике через OpenAI-совместимый LLM API
//   - Публикует оценку в final-results-queue
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/gradeflow/internal/collab"
	"github.com/shaiso/gradeflow/internal/config"
	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/telemetry"
	"github.com/shaiso/gradeflow/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("gradeflow-grader")
	logger.Info("starting gradeflow-grader")

	cfg, err := config.LoadGrader()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Broker != config.BrokerAMQP {
		logger.Error("standalone worker requires BROKER=amqp", "broker", cfg.Broker)
		os.Exit(1)
	}
	if cfg.LLMAPIKey == "" {
		logger.Warn("LLM_API_KEY is empty, grading requests will likely be rejected")
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// RabbitMQ
	conn, err := mq.Dial(ctx, cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Debug("topology ready", "topology", mq.TopologyInfo())

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	llm := collab.NewLLMClient(collab.LLMConfig{
		BaseURL: cfg.LLMURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	})
	logger.Info("grading model", "model", llm.Model())

	// Создаём worker
	w := worker.New(worker.Config{
		Broker: mq.NewAMQPBroker(conn, logger),
		Stage: worker.NewGradingStage(worker.GradingConfig{
			Grader:  llm,
			AgentID: cfg.AgentID,
			Timeout: cfg.LLMTimeout,
			Metrics: metrics,
			Logger:  logger,
		}),
		Metrics: metrics,
		Logger:  logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !conn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("gradeflow-grader stopped")
}
