package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Builds
	BuildsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pagesmith_builds_accepted_total",
			Help: "Total number of build requests accepted",
		},
	)
	DuplicateRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pagesmith_duplicate_requests_total",
			Help: "Requests re-notified because the dedupe key was already processed",
		},
	)
	BuildStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesmith_build_status_changes_total",
			Help: "Number of build status transitions",
		},
		[]string{"from", "to"},
	)
	ActiveBuilds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagesmith_builds_active",
			Help: "Current number of builds being processed",
		},
	)
	BuildDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagesmith_build_duration_seconds",
			Help:    "Histogram of build durations in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s..512s
		},
		[]string{"round"},
	)

	// Validation
	ValidationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesmith_validation_runs_total",
			Help: "Number of validation runs by result",
		},
		[]string{"result"}, // result: pass|fail|error
	)

	// Publisher (hosting API)
	PublishOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesmith_publish_ops_total",
			Help: "Hosting API operations performed",
		},
		[]string{"op"}, // op: ensure_repo|put_file|get_file|enable_pages|head_commit
	)

	// LLM
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesmith_llm_requests_total",
			Help: "Number of LLM requests by model",
		},
		[]string{"model"},
	)

	// Evaluation callback
	NotifyAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesmith_notify_attempts_total",
			Help: "Evaluation server notification attempts by result",
		},
		[]string{"result"}, // result: ok|error
	)

	// DB / file storage ops
	DBFileOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesmith_db_file_ops_total",
			Help: "Database file operations performed",
		},
		[]string{"op"}, // op: get|put|delete|list|count
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesmith_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		BuildsAccepted,
		DuplicateRequests,
		BuildStatusChanges,
		ActiveBuilds,
		BuildDurationSeconds,

		ValidationRuns,
		PublishOps,
		LLMRequests,
		NotifyAttempts,
		DBFileOps,
		Errors,
	)
}

func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	_ = http.ListenAndServe(addr, nil)
}

// Builds
func IncBuildsAccepted() {
	BuildsAccepted.Inc()
}

func IncDuplicateRequest() {
	DuplicateRequests.Inc()
}

func IncBuildStatusChange(from, to string) {
	BuildStatusChanges.WithLabelValues(from, to).Inc()
}

func SetActiveBuilds(n int) {
	ActiveBuilds.Set(float64(n))
}

func ObserveBuildDuration(round string, d time.Duration) {
	BuildDurationSeconds.WithLabelValues(round).Observe(d.Seconds())
}

// Validation
func IncValidationRun(result string) {
	ValidationRuns.WithLabelValues(result).Inc()
}

// Publisher
func IncPublishOp(op string) {
	PublishOps.WithLabelValues(op).Inc()
}

// LLM
func IncLLMRequest(model string) {
	LLMRequests.WithLabelValues(model).Inc()
}

// Notify
func IncNotifyAttempt(result string) {
	NotifyAttempts.WithLabelValues(result).Inc()
}

// DB / file ops
func IncDBFileOp(op string) {
	DBFileOps.WithLabelValues(op).Inc()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
