package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ocrConductor = "ocr_conductor"

	documentsProcessedTotal = "documents_processed_total"
	endpointFailoversTotal  = "endpoint_failovers_total"
	batchRunsTotal          = "batch_runs_total"
	watchdogTicksTotal      = "watchdog_ticks_total"
	ocrDuration             = "ocr_request_duration_seconds"

	// Labels
	outcomeLabel  = "outcome"
	endpointLabel = "endpoint"
	triggerLabel  = "trigger"
	tickLabel     = "result"
)

// Outcome label values for processed documents.
const (
	OutcomeApplied   = "applied"
	OutcomeReview    = "review"
	OutcomeFailed    = "failed"
	OutcomeUnchanged = "unchanged"
)

// Trigger label values for batch runs.
const (
	TriggerManual   = "manual"
	TriggerWatchdog = "watchdog"
)

// Tick result label values for the watchdog.
const (
	TickStarted  = "started"
	TickSkipped  = "skipped"
	TickDisabled = "disabled"
)

/**
* Metrics definition
**/
var documentsProcessedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: ocrConductor,
		Name:      documentsProcessedTotal,
		Help:      "number of documents processed by batch runs, by outcome",
	},
	[]string{outcomeLabel},
)

var endpointFailoversMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: ocrConductor,
		Name:      endpointFailoversTotal,
		Help:      "number of times an inference endpoint was put in cooldown",
	},
	[]string{endpointLabel},
)

var batchRunsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: ocrConductor,
		Name:      batchRunsTotal,
		Help:      "number of batch runs started, by trigger",
	},
	[]string{triggerLabel},
)

var watchdogTicksMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: ocrConductor,
		Name:      watchdogTicksTotal,
		Help:      "watchdog timer evaluations, by result",
	},
	[]string{tickLabel},
)

var ocrDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: ocrConductor,
		Name:      ocrDuration,
		Help:      "duration of OCR inference calls",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	},
	[]string{endpointLabel},
)

func IncreaseDocumentsProcessed(outcome string) {
	documentsProcessedMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func IncreaseEndpointFailovers(endpoint string) {
	endpointFailoversMetric.With(prometheus.Labels{endpointLabel: endpoint}).Inc()
}

func IncreaseBatchRuns(trigger string) {
	batchRunsMetric.With(prometheus.Labels{triggerLabel: trigger}).Inc()
}

func IncreaseWatchdogTicks(result string) {
	watchdogTicksMetric.With(prometheus.Labels{tickLabel: result}).Inc()
}

func ObserveOcrDuration(endpoint string, seconds float64) {
	ocrDurationMetric.With(prometheus.Labels{endpointLabel: endpoint}).Observe(seconds)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(documentsProcessedMetric)
	prometheus.MustRegister(endpointFailoversMetric)
	prometheus.MustRegister(batchRunsMetric)
	prometheus.MustRegister(watchdogTicksMetric)
	prometheus.MustRegister(ocrDurationMetric)
}
