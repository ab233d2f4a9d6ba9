package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exposes turn events as metrics.
type Prometheus struct {
	turns       *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
	cost        prometheus.Counter
	microchecks prometheus.Counter
}

// NewPrometheus registers the coach metrics on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coach",
			Name:      "turns_total",
			Help:      "Processed learner turns by prompt, classification and outcome.",
		}, []string{"prompt", "classification", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coach",
			Name:      "turn_latency_seconds",
			Help:      "Time from turn start to the end of the model stream.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"prompt"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coach",
			Name:      "model_tokens_total",
			Help:      "Model tokens consumed by direction.",
		}, []string{"direction"}),
		cost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coach",
			Name:      "model_cost_usd_total",
			Help:      "Estimated model spend in USD.",
		}),
		microchecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coach",
			Name:      "microchecks_created_total",
			Help:      "Microchecks created by the frequency trigger.",
		}),
	}
	reg.MustRegister(p.turns, p.latency, p.tokens, p.cost, p.microchecks)
	return p
}

// Record implements Recorder.
func (p *Prometheus) Record(e Event) {
	label := e.ClassificationLabel
	if label == "" {
		label = "none"
	}
	p.turns.WithLabelValues(e.Prompt, label, e.Outcome).Inc()
	p.latency.WithLabelValues(e.Prompt).Observe(e.LatencyMs / 1000)
	p.tokens.WithLabelValues("input").Add(float64(e.InputTokens))
	p.tokens.WithLabelValues("output").Add(float64(e.OutputTokens))
	p.cost.Add(e.TotalCost)
	if e.MicrocheckCreated {
		p.microchecks.Inc()
	}
}

// Close implements Recorder.
func (p *Prometheus) Close() error { return nil }
