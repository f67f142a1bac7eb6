// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cclsrec"

var (
	// Training
	TrainSteps = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "train_steps_total",
			Help:      "Total number of optimizer steps",
		},
	)

	TrainStepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "train_step_duration_seconds",
			Help:      "Duration of one forward, backward and optimizer step",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms .. ~33s
		},
	)

	TrainLoss = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_loss",
			Help:      "Most recent training loss by component",
		},
		[]string{"component"}, // "total", "primary", "guidance", "free"
	)

	TrainContrastive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_contrastive",
			Help:      "Alignment and uniformity of the most recent contrastive pair",
		},
		[]string{"branch", "term"},
	)

	TrainGradNorm = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_grad_norm",
			Help:      "Global gradient L2 norm before clipping",
		},
	)

	TrainEpochs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "train_epochs_total",
			Help:      "Total number of completed epochs",
		},
	)

	EvalMetric = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eval_metric",
			Help:      "Most recent ranking metric per split",
		},
		[]string{"split", "metric"},
	)

	CheckpointsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_saved_total",
			Help:      "Total number of checkpoints written",
		},
	)

	// Serving
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_requests",
			Help:      "Number of requests being served",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendation requests by outcome",
		},
		[]string{"result"}, // "ok", "cache_hit", "error"
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Full-catalog scoring latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_version",
			Help:      "Checkpoint version currently served",
		},
	)

	ModelReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reloads_total",
			Help:      "Checkpoint reload attempts by outcome",
		},
		[]string{"result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// LossSample is one step's loss breakdown.
type LossSample struct {
	Total, Primary, Guidance, Free float64

	GuidanceAlignment, GuidanceUniformity float64
	FreeAlignment, FreeUniformity         float64
}

// RecordTrainStep records one optimizer step.
//
//nolint:gocritic // hugeParam: sample passed by value for simplicity
func RecordTrainStep(duration time.Duration, sample LossSample, gradNorm float64) {
	TrainSteps.Inc()
	TrainStepDuration.Observe(duration.Seconds())
	TrainLoss.WithLabelValues("total").Set(sample.Total)
	TrainLoss.WithLabelValues("primary").Set(sample.Primary)
	TrainLoss.WithLabelValues("guidance").Set(sample.Guidance)
	TrainLoss.WithLabelValues("free").Set(sample.Free)
	TrainContrastive.WithLabelValues("guidance", "alignment").Set(sample.GuidanceAlignment)
	TrainContrastive.WithLabelValues("guidance", "uniformity").Set(sample.GuidanceUniformity)
	TrainContrastive.WithLabelValues("free", "alignment").Set(sample.FreeAlignment)
	TrainContrastive.WithLabelValues("free", "uniformity").Set(sample.FreeUniformity)
	TrainGradNorm.Set(gradNorm)
}

// RecordEpoch counts a finished epoch.
func RecordEpoch() { TrainEpochs.Inc() }

// RecordEvaluation publishes ranking metrics for a split.
func RecordEvaluation(split string, values map[string]float64) {
	for name, v := range values {
		EvalMetric.WithLabelValues(split, name).Set(v)
	}
}

// RecordCheckpoint counts a saved checkpoint.
func RecordCheckpoint() { CheckpointsSaved.Inc() }

// RecordAPIRequest records an API request's status and latency.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit counts a rejected request.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRecommendation records the outcome of one engine request.
func RecordRecommendation(cacheHit bool, prediction time.Duration, err error) {
	switch {
	case err != nil:
		Recommendations.WithLabelValues("error").Inc()
	case cacheHit:
		Recommendations.WithLabelValues("cache_hit").Inc()
	default:
		Recommendations.WithLabelValues("ok").Inc()
		PredictionDuration.Observe(prediction.Seconds())
	}
}

// RecordModelReload records a reload attempt; version is set on success.
func RecordModelReload(result string, version int) {
	ModelReloads.WithLabelValues(result).Inc()
	if result == "success" {
		ModelVersion.Set(float64(version))
	}
}

// RecordCircuitBreakerTransition updates the breaker gauges.
func RecordCircuitBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}
