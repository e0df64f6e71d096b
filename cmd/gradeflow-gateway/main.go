// gradeflow-gateway — точка входа клиентов.
//
// Gateway:
//   - Принимает задачи на оценивание (POST /v1/evaluate) и публикует их в task-queue
//   - Отдаёт статус задачи из in-memory хранилища (GET /v1/status/{task_id})
//   - Слушает final-results-queue, вызывает policy и фиксирует решение
//   - Периодически проваливает зависшие задачи и удаляет старые завершённые
//
// С BROKER=memory стадии распознавания и оценивания работают в этом же процессе.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/gradeflow/internal/api"
	"github.com/shaiso/gradeflow/internal/collab"
	"github.com/shaiso/gradeflow/internal/config"
	"github.com/shaiso/gradeflow/internal/domain"
	"github.com/shaiso/gradeflow/internal/gateway"
	"github.com/shaiso/gradeflow/internal/mq"
	"github.com/shaiso/gradeflow/internal/orchestrator"
	"github.com/shaiso/gradeflow/internal/repo"
	"github.com/shaiso/gradeflow/internal/scheduler"
	"github.com/shaiso/gradeflow/internal/store"
	"github.com/shaiso/gradeflow/internal/telemetry"
	"github.com/shaiso/gradeflow/internal/worker"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("gradeflow-gateway")
	logger.Info("starting gradeflow-gateway")

	cfg, err := config.LoadGateway()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	tasks := store.New()

	// Брокер
	var broker mq.Broker
	var workers []*worker.Worker
	switch cfg.Broker {
	case config.BrokerMemory:
		mem := mq.NewMemoryBroker(logger)
		defer mem.Close()
		broker = mem

		workers, err = startInProcessWorkers(ctx, mem, metrics, logger)
		if err != nil {
			logger.Error("failed to start in-process workers", "error", err)
			os.Exit(1)
		}
		logger.Info("in-memory broker with in-process workers")
	default:
		conn, err := mq.Dial(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		logger.Debug("topology ready", "topology", mq.TopologyInfo())
		broker = mq.NewAMQPBroker(conn, logger)
		logger.Info("RabbitMQ connected")
	}

	// Policy
	var policy collab.Policy
	if cfg.PolicyURL != "" {
		policy = collab.NewOPAPolicy(cfg.PolicyURL, nil)
		logger.Info("using OPA policy", "url", cfg.PolicyURL)
	} else {
		policy = collab.StaticPolicy{PassScore: cfg.PassScore, MinConfidence: cfg.MinConfidence}
		logger.Info("using static policy", "pass_score", cfg.PassScore, "min_confidence", cfg.MinConfidence)
	}

	// Журнал решений (опционально)
	var auditSink domain.AuditSink
	var auditReader api.AuditReader
	if cfg.AuditDBURL != "" {
		pool, err := repo.NewPool(ctx, cfg.AuditDBURL)
		if err != nil {
			logger.Error("failed to connect to audit database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		auditRepo := repo.NewAuditRepo(pool)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to create audit schema", "error", err)
			os.Exit(1)
		}
		auditSink = auditRepo
		auditReader = auditRepo
		logger.Info("decision audit enabled")
	}

	// Reconciler
	reconciler := orchestrator.New(orchestrator.Config{
		Broker:        broker,
		Store:         tasks,
		Policy:        policy,
		Audit:         auditSink,
		Metrics:       metrics,
		PolicyTimeout: cfg.PolicyTimeout,
		Logger:        logger,
	})
	if err := reconciler.Start(ctx); err != nil {
		logger.Error("failed to start reconciler", "error", err)
		os.Exit(1)
	}

	// Sweeper
	sweeper := scheduler.New(scheduler.Config{
		Store:     tasks,
		Deadline:  cfg.TaskDeadline,
		Retention: cfg.TaskRetention,
		Schedule:  cfg.SweepSchedule,
		Audit:     auditSink,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}

	// API
	handler := api.NewHandler(api.Config{
		Service: gateway.New(gateway.Config{
			Broker:  broker,
			Store:   tasks,
			Audit:   auditSink,
			Metrics: metrics,
			Logger:  logger,
		}),
		Audit:       auditReader,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	sweeper.Stop()
	reconciler.Stop()
	for _, w := range workers {
		w.Stop()
	}

	logger.Info("gradeflow-gateway stopped")
}

// startInProcessWorkers запускает обе стадии поверх общего in-memory брокера.
func startInProcessWorkers(ctx context.Context, broker mq.Broker, metrics *telemetry.Metrics, logger *slog.Logger) ([]*worker.Worker, error) {
	visionCfg, err := config.LoadVision()
	if err != nil {
		return nil, err
	}
	graderCfg, err := config.LoadGrader()
	if err != nil {
		return nil, err
	}

	var extractor collab.TextExtractor
	if visionCfg.OCRURL != "" {
		extractor = collab.NewOCRClient(collab.OCRConfig{URL: visionCfg.OCRURL})
	}

	stages := []worker.Stage{
		worker.NewVisionStage(worker.VisionConfig{
			Extractor: extractor,
			AgentID:   visionCfg.AgentID,
			Timeout:   visionCfg.OCRTimeout,
			Metrics:   metrics,
			Logger:    logger,
		}),
		worker.NewGradingStage(worker.GradingConfig{
			Grader: collab.NewLLMClient(collab.LLMConfig{
				BaseURL: graderCfg.LLMURL,
				APIKey:  graderCfg.LLMAPIKey,
				Model:   graderCfg.LLMModel,
			}),
			AgentID: graderCfg.AgentID,
			Timeout: graderCfg.LLMTimeout,
			Metrics: metrics,
			Logger:  logger,
		}),
	}

	workers := make([]*worker.Worker, 0, len(stages))
	for _, stage := range stages {
		w := worker.New(worker.Config{
			Broker:  broker,
			Stage:   stage,
			Metrics: metrics,
			Logger:  logger,
		})
		if err := w.Start(ctx); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, nil
}
