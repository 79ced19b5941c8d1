package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	stageDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	toolExitNonzero *prom.CounterVec
	inFlight        prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "compilerd",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual compilation stages including workspace handling",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "compilerd",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.toolExitNonzero = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "compilerd",
			Name:      "tool_exit_nonzero_total",
			Help:      "Invocations where the external tool exited nonzero",
		}, []string{"stage"})
		pr.inFlight = prom.NewGauge(prom.GaugeOpts{
			Namespace: "compilerd",
			Name:      "requests_in_flight",
			Help:      "Stage orchestrations currently executing",
		})
		reg.MustRegister(pr.stageDuration, pr.stageResults, pr.toolExitNonzero, pr.inFlight)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncToolExitNonzero(stage string) {
	if p == nil || p.toolExitNonzero == nil {
		return
	}
	p.toolExitNonzero.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) AddInFlight(delta int) {
	if p == nil || p.inFlight == nil {
		return
	}
	p.inFlight.Add(float64(delta))
}
