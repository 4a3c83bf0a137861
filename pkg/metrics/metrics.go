package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the processing pipeline
var (
	// JobsEnqueued counts accepted enqueues per job kind.
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_jobs_enqueued_total",
		Help: "Total number of jobs enqueued",
	}, []string{"job"})

	// JobsDeduplicated counts enqueues answered with an existing job.
	JobsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_jobs_deduplicated_total",
		Help: "Total number of enqueues suppressed by a dedupe key",
	}, []string{"job"})

	// JobOutcomes counts handler results by outcome (completed, retrying, failed).
	JobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_job_outcomes_total",
		Help: "Total number of job executions by outcome",
	}, []string{"job", "outcome"})

	// JobDuration measures handler run time.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_job_duration_seconds",
		Help:    "Job handler duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
	}, []string{"job"})

	// JobsInFlight is the number of handlers currently running.
	JobsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_jobs_in_flight",
		Help: "Number of job handlers currently running",
	}, []string{"job"})

	// ProviderCalls counts adapter calls by role, provider and result.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_provider_calls_total",
		Help: "Total number of provider calls",
	}, []string{"role", "provider", "result"})

	// TranscriptionChunks counts chunk outcomes per pass.
	TranscriptionChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_transcription_chunks_total",
		Help: "Total number of transcription chunks by pass and result",
	}, []string{"pass", "result"})

	// VisualOutcomes counts terminal visual statuses.
	VisualOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_visual_outcomes_total",
		Help: "Total number of visuals by terminal status",
	}, []string{"status"})

	// SourcesFinished counts sources reaching COMPLETED or FAILED.
	SourcesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_sources_finished_total",
		Help: "Total number of sources that reached a terminal status",
	}, []string{"status"})

	// JobsPruned counts ledger rows removed by the janitor.
	JobsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_jobs_pruned_total",
		Help: "Total number of finished jobs pruned from the ledger",
	})
)
