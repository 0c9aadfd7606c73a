package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sentinelstack/latency-sentinel/internal/models"
)

const (
	// ResultNormal labels verdicts classified as normal.
	ResultNormal = "normal"
	// ResultAnomalous labels verdicts classified as anomalous.
	ResultAnomalous = "anomalous"
)

var (
	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "latency_sentinel",
			Name:      "probes_total",
			Help:      "Total number of probe cycles, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	probeLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "latency_sentinel",
			Name:      "probe_latency_seconds",
			Help:      "Observed target latency in seconds for successful probes.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "latency_sentinel",
			Name:      "verdicts_total",
			Help:      "Total number of classified samples, partitioned by result.",
		},
		[]string{"result"},
	)

	anomalyScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "latency_sentinel",
			Name:      "anomaly_score",
			Help:      "Anomaly score of the most recently classified sample.",
		},
	)

	modelRetrainsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "latency_sentinel",
			Name:      "model_retrains_total",
			Help:      "Total number of model rebuilds.",
		},
	)

	windowSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "latency_sentinel",
			Name:      "window_size",
			Help:      "Current number of samples in the detection window.",
		},
	)

	availabilityErrorRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "latency_sentinel",
			Name:      "availability_error_rate",
			Help:      "Probe failure fraction over the availability window.",
		},
	)
)

// Register attaches latency-sentinel collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		probesTotal,
		probeLatencySeconds,
		verdictsTotal,
		anomalyScore,
		modelRetrainsTotal,
		windowSize,
		availabilityErrorRate,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveProbe records a completed probe cycle.
func ObserveProbe(sample models.Sample) {
	probesTotal.WithLabelValues(string(sample.Outcome)).Inc()
	if sample.OK() {
		probeLatencySeconds.Observe(sample.Latency.Seconds())
	}
}

// ObserveVerdict records a classification result.
func ObserveVerdict(v models.Verdict) {
	result := ResultNormal
	if v.Anomalous {
		result = ResultAnomalous
	}
	verdictsTotal.WithLabelValues(result).Inc()
	anomalyScore.Set(v.Score)
}

// IncModelRetrain counts one model rebuild.
func IncModelRetrain() {
	modelRetrainsTotal.Inc()
}

// SetWindowSize publishes the current detection window length.
func SetWindowSize(n int) {
	windowSize.Set(float64(n))
}

// SetErrorRate publishes the rolling probe failure fraction.
func SetErrorRate(rate float64) {
	availabilityErrorRate.Set(rate)
}
