package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/droverhq/drover/config"
)

// Telemetry tracks harness health: task outcomes, turn counts, model and
// gateway call volumes, and retry pressure. Aggregates are mirrored to
// prometheus when enabled so the ops server's /metrics endpoint exposes them.
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *log.Logger
	metrics *Metrics
	mu      sync.RWMutex
}

// Metrics holds aggregate counters for one harness process.
type Metrics struct {
	// Task metrics
	TasksStarted    int64
	TasksByOutcome  map[string]int64
	TaskRetries     int64
	AverageTaskTime time.Duration

	// Turn metrics
	TotalTurns      int64
	SoftFailures    int64
	AverageTurnTime time.Duration

	// Model metrics
	LLMCalls    map[string]int64 // role -> calls
	LLMFailures map[string]int64

	// Gateway metrics
	APICalls          map[string]int64 // endpoint -> calls
	APIFailures       map[string]int64
	PaginationRetries int64
}

// TaskEvent records one finished task run.
type TaskEvent struct {
	TaskID   string
	Outcome  string
	Turns    int
	Attempts int
	Duration time.Duration
	Error    string
}

// TurnEvent records one coordinator turn.
type TurnEvent struct {
	TaskID      string
	Turn        int
	Decision    string
	SoftFailure bool
	Duration    time.Duration
}

var (
	promTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drover_tasks_total",
		Help: "Finished task runs by outcome.",
	}, []string{"outcome"})
	promTaskRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drover_task_retries_total",
		Help: "Task-level retries after rate-limit failures.",
	})
	promTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drover_turns_total",
		Help: "Coordinator turns executed.",
	})
	promTurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "drover_turn_duration_seconds",
		Help:    "Wall time of one coordinator turn.",
		Buckets: prometheus.DefBuckets,
	})
	promLLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drover_llm_calls_total",
		Help: "Model calls by role.",
	}, []string{"role", "status"})
	promAPICalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drover_api_calls_total",
		Help: "Gateway calls by endpoint.",
	}, []string{"endpoint", "status"})
	promPageRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drover_pagination_retries_total",
		Help: "Corrective pagination retries.",
	})
)

// NewTelemetry creates a telemetry instance.
func NewTelemetry(config config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: config,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			TasksByOutcome: make(map[string]int64),
			LLMCalls:       make(map[string]int64),
			LLMFailures:    make(map[string]int64),
			APICalls:       make(map[string]int64),
			APIFailures:    make(map[string]int64),
		},
	}

	if config.Enabled && config.PeriodicLogs {
		go t.startMetricsCollection()
	}

	return t
}

// RecordTaskEvent records a finished task run.
func (t *Telemetry) RecordTaskEvent(ctx context.Context, event TaskEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TasksStarted++
	t.metrics.TasksByOutcome[event.Outcome]++
	if event.Attempts > 1 {
		t.metrics.TaskRetries += int64(event.Attempts - 1)
	}

	if t.metrics.TasksStarted == 1 {
		t.metrics.AverageTaskTime = event.Duration
	} else {
		total := t.metrics.AverageTaskTime * time.Duration(t.metrics.TasksStarted-1)
		t.metrics.AverageTaskTime = (total + event.Duration) / time.Duration(t.metrics.TasksStarted)
	}

	if t.config.PrometheusEnabled {
		promTasks.WithLabelValues(event.Outcome).Inc()
		if event.Attempts > 1 {
			promTaskRetries.Add(float64(event.Attempts - 1))
		}
	}

	t.logger.Printf("Task Event: ID=%s, Outcome=%s, Turns=%d, Attempts=%d, Duration=%v",
		event.TaskID, event.Outcome, event.Turns, event.Attempts, event.Duration)
}

// RecordTurnEvent records one coordinator turn.
func (t *Telemetry) RecordTurnEvent(ctx context.Context, event TurnEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalTurns++
	if event.SoftFailure {
		t.metrics.SoftFailures++
	}

	if t.metrics.TotalTurns == 1 {
		t.metrics.AverageTurnTime = event.Duration
	} else {
		total := t.metrics.AverageTurnTime * time.Duration(t.metrics.TotalTurns-1)
		t.metrics.AverageTurnTime = (total + event.Duration) / time.Duration(t.metrics.TotalTurns)
	}

	if t.config.PrometheusEnabled {
		promTurns.Inc()
		promTurnDuration.Observe(event.Duration.Seconds())
	}
}

// RecordLLMCall records one model call by role (planner, executor, extractor).
func (t *Telemetry) RecordLLMCall(ctx context.Context, role string, duration time.Duration, err error) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.LLMCalls[role]++
	status := "ok"
	if err != nil {
		t.metrics.LLMFailures[role]++
		status = "error"
	}
	if t.config.PrometheusEnabled {
		promLLMCalls.WithLabelValues(role, status).Inc()
	}
}

// RecordAPICall records one gateway call.
func (t *Telemetry) RecordAPICall(ctx context.Context, endpoint string, duration time.Duration, err error) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.APICalls[endpoint]++
	status := "ok"
	if err != nil {
		t.metrics.APIFailures[endpoint]++
		status = "error"
	}
	if t.config.PrometheusEnabled {
		promAPICalls.WithLabelValues(endpoint, status).Inc()
	}
}

// RecordPaginationRetry records one corrective pagination retry.
func (t *Telemetry) RecordPaginationRetry(ctx context.Context, endpoint string) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.PaginationRetries++
	if t.config.PrometheusEnabled {
		promPageRetries.Inc()
	}
}

// GetMetrics returns a copy of the current metrics.
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := Metrics{
		TasksStarted:      t.metrics.TasksStarted,
		TaskRetries:       t.metrics.TaskRetries,
		AverageTaskTime:   t.metrics.AverageTaskTime,
		TotalTurns:        t.metrics.TotalTurns,
		SoftFailures:      t.metrics.SoftFailures,
		AverageTurnTime:   t.metrics.AverageTurnTime,
		PaginationRetries: t.metrics.PaginationRetries,
		TasksByOutcome:    make(map[string]int64),
		LLMCalls:          make(map[string]int64),
		LLMFailures:       make(map[string]int64),
		APICalls:          make(map[string]int64),
		APIFailures:       make(map[string]int64),
	}
	for k, v := range t.metrics.TasksByOutcome {
		metrics.TasksByOutcome[k] = v
	}
	for k, v := range t.metrics.LLMCalls {
		metrics.LLMCalls[k] = v
	}
	for k, v := range t.metrics.LLMFailures {
		metrics.LLMFailures[k] = v
	}
	for k, v := range t.metrics.APICalls {
		metrics.APICalls[k] = v
	}
	for k, v := range t.metrics.APIFailures {
		metrics.APIFailures[k] = v
	}
	return metrics
}

// GetPerformanceReport returns a readable summary of the current aggregates.
func (t *Telemetry) GetPerformanceReport() string {
	metrics := t.GetMetrics()

	report := fmt.Sprintf(`
=== SESSION REPORT ===
Tasks: %d started, %d retried
Turns: %d total, %d soft failures, %v avg
Pagination retries: %d

Outcomes:
`, metrics.TasksStarted, metrics.TaskRetries,
		metrics.TotalTurns, metrics.SoftFailures, metrics.AverageTurnTime,
		metrics.PaginationRetries)

	for outcome, n := range metrics.TasksByOutcome {
		report += fmt.Sprintf("  %s: %d\n", outcome, n)
	}

	report += "\nModel calls:\n"
	for role, n := range metrics.LLMCalls {
		report += fmt.Sprintf("  %s: %d calls, %d failures\n", role, n, metrics.LLMFailures[role])
	}

	report += "\nGateway calls:\n"
	for endpoint, n := range metrics.APICalls {
		report += fmt.Sprintf("  %s: %d calls, %d failures\n", endpoint, n, metrics.APIFailures[endpoint])
	}

	return report
}

func (t *Telemetry) startMetricsCollection() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		metrics := t.GetMetrics()
		t.logger.Printf("Metrics Snapshot: Tasks=%d, Turns=%d, SoftFailures=%d, AvgTurn=%v, PageRetries=%d",
			metrics.TasksStarted, metrics.TotalTurns, metrics.SoftFailures,
			metrics.AverageTurnTime, metrics.PaginationRetries)
	}
}

// Shutdown logs the final report.
func (t *Telemetry) Shutdown() {
	if !t.config.Enabled {
		return
	}
	t.logger.Println("Shutting down telemetry...")
	t.logger.Print(t.GetPerformanceReport())
}
