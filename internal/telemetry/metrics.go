package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — Prometheus метрики конвейера.
//
// Все методы безопасны для nil-получателя: компоненты, собранные без метрик
// (например, в тестах), просто ничего не пишут.
type Metrics struct {
	// Counters
	tasksSubmitted   prometheus.Counter
	publishFailures  *prometheus.CounterVec
	tasksTerminal    *prometheus.CounterVec
	stageMessages    *prometheus.CounterVec
	collabErrors     *prometheus.CounterVec
	orphanResults    prometheus.Counter
	duplicateResults prometheus.Counter
	tasksExpired     prometheus.Counter
	tasksEvicted     prometheus.Counter

	// Gauges
	tasksByStatus *prometheus.GaugeVec

	// Histograms
	collabDuration *prometheus.HistogramVec
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// nil reg означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeflow_tasks_submitted_total",
			Help: "Total evaluation tasks accepted by the gateway",
		}),
		publishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradeflow_publish_failures_total",
				Help: "Total failed publishes by queue",
			},
			[]string{"queue"},
		),
		tasksTerminal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradeflow_tasks_terminal_total",
				Help: "Total terminal transitions by task status and decision status",
			},
			[]string{"status", "decision"},
		),
		stageMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradeflow_stage_messages_total",
				Help: "Messages handled by pipeline stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		collabErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradeflow_collaborator_errors_total",
				Help: "Failed collaborator calls by collaborator",
			},
			[]string{"collaborator"},
		),
		orphanResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeflow_orphan_results_total",
			Help: "Graded results for task IDs unknown to the task store",
		}),
		duplicateResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeflow_duplicate_results_total",
			Help: "Graded results for tasks that were already terminal",
		}),
		tasksExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeflow_tasks_expired_total",
			Help: "Tasks failed by the terminal-timeout sweeper",
		}),
		tasksEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeflow_tasks_evicted_total",
			Help: "Terminal tasks removed by the retention sweeper",
		}),
		tasksByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gradeflow_tasks",
				Help: "Tasks currently held in the task store by status",
			},
			[]string{"status"},
		),
		collabDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gradeflow_collaborator_duration_seconds",
				Help:    "Collaborator call latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"collaborator"},
		),
	}

	reg.MustRegister(
		m.tasksSubmitted,
		m.publishFailures,
		m.tasksTerminal,
		m.stageMessages,
		m.collabErrors,
		m.orphanResults,
		m.duplicateResults,
		m.tasksExpired,
		m.tasksEvicted,
		m.tasksByStatus,
		m.collabDuration,
	)

	return m
}

// TaskSubmitted учитывает принятую задачу.
func (m *Metrics) TaskSubmitted() {
	if m == nil {
		return
	}
	m.tasksSubmitted.Inc()
}

// PublishFailed учитывает неудачную публикацию.
func (m *Metrics) PublishFailed(queue string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(queue).Inc()
}

// TaskTerminal учитывает терминальный переход.
func (m *Metrics) TaskTerminal(status, decision string) {
	if m == nil {
		return
	}
	m.tasksTerminal.WithLabelValues(status, decision).Inc()
}

// StageMessage учитывает обработанное стадией сообщение.
func (m *Metrics) StageMessage(stage, outcome string) {
	if m == nil {
		return
	}
	m.stageMessages.WithLabelValues(stage, outcome).Inc()
}

// ObserveCollaborator записывает длительность вызова и ошибку, если она была.
func (m *Metrics) ObserveCollaborator(name string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.collabDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		m.collabErrors.WithLabelValues(name).Inc()
	}
}

// OrphanResult учитывает результат для неизвестной задачи.
func (m *Metrics) OrphanResult() {
	if m == nil {
		return
	}
	m.orphanResults.Inc()
}

// DuplicateResult учитывает повторный результат для завершённой задачи.
func (m *Metrics) DuplicateResult() {
	if m == nil {
		return
	}
	m.duplicateResults.Inc()
}

// TasksExpired учитывает задачи, проваленные по таймауту.
func (m *Metrics) TasksExpired(n int) {
	if m == nil {
		return
	}
	m.tasksExpired.Add(float64(n))
}

// TasksEvicted учитывает удалённые задачи.
func (m *Metrics) TasksEvicted(n int) {
	if m == nil {
		return
	}
	m.tasksEvicted.Add(float64(n))
}

// SetTaskCounts выставляет gauge по статусам.
func (m *Metrics) SetTaskCounts(counts map[string]int) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.tasksByStatus.WithLabelValues(status).Set(float64(n))
	}
}
