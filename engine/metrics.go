package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// engineMetrics instruments the execution path. Collectors are created
// unregistered; callers that want them scraped register via Describe/Collect
// on the engine.
type engineMetrics struct {
	attempts         prometheus.Counter
	executions       prometheus.Counter
	failures         *prometheus.CounterVec
	lenderSelections *prometheus.CounterVec
	borrowedVolume   prometheus.Counter
	profitVolume     prometheus.Counter
	latency          prometheus.Histogram
	inFlight         prometheus.Gauge
	successRate      prometheus.Gauge
}

func newEngineMetrics() engineMetrics {
	return engineMetrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbitrage_attempts_total",
			Help: "Number of top-level arbitrage invocations",
		}),
		executions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbitrage_executions_total",
			Help: "Number of successful arbitrage executions",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbitrage_failures_total",
			Help: "Number of failed invocations by taxonomy case",
		}, []string{"reason"}),
		lenderSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbitrage_lender_selections_total",
			Help: "Number of times each funding source was selected",
		}, []string{"lender"}),
		borrowedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbitrage_borrowed_volume",
			Help: "Total volume borrowed across successful executions",
		}),
		profitVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbitrage_profit_volume",
			Help: "Total profit across successful executions",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbitrage_execution_latency_seconds",
			Help:    "Latency of top-level invocations",
			Buckets: prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbitrage_in_flight",
			Help: "Invocations currently executing",
		}),
		successRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbitrage_success_rate",
			Help: "Successful executions over attempts",
		}),
	}
}

func (m *engineMetrics) updateSuccessRate() {
	succeeded := counterValue(m.executions)
	attempted := counterValue(m.attempts)
	if attempted > 0 {
		m.successRate.Set(succeeded / attempted)
	}
}

func counterValue(c prometheus.Counter) float64 {
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	metric := <-ch
	out := &dto.Metric{}
	if err := metric.Write(out); err != nil || out.Counter == nil {
		return 0
	}
	return out.Counter.GetValue()
}

// Describe implements prometheus.Collector for the engine.
func (e *Engine) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(e, ch)
}

// Collect implements prometheus.Collector for the engine.
func (e *Engine) Collect(ch chan<- prometheus.Metric) {
	e.metrics.attempts.Collect(ch)
	e.metrics.executions.Collect(ch)
	e.metrics.failures.Collect(ch)
	e.metrics.lenderSelections.Collect(ch)
	e.metrics.borrowedVolume.Collect(ch)
	e.metrics.profitVolume.Collect(ch)
	e.metrics.latency.Collect(ch)
	e.metrics.inFlight.Collect(ch)
	e.metrics.successRate.Collect(ch)
}
