package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	queries      *prom.CounterVec
	finalizes    *prom.CounterVec
	changedFiles *prom.GaugeVec
	baseline     *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.queries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "incremental",
			Name:      "queries_total",
			Help:      "Freshness queries by namespace, mode and result",
		}, []string{"namespace", "mode", "result"})
		pr.finalizes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "incremental",
			Name:      "finalize_total",
			Help:      "Baseline writes by namespace, mode and outcome",
		}, []string{"namespace", "mode", "outcome"})
		pr.changedFiles = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "incremental",
			Name:      "changed_files",
			Help:      "Files changed since the recorded commit (source-control mode)",
		}, []string{"namespace"})
		pr.baseline = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "incremental",
			Name:      "baseline_timestamp_seconds",
			Help:      "Unix time of the baseline loaded for a namespace (timestamp mode)",
		}, []string{"namespace"})
		reg.MustRegister(pr.queries, pr.finalizes, pr.changedFiles, pr.baseline)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveQuery(namespace, mode string, isNew bool) {
	if p == nil || p.queries == nil {
		return
	}
	p.queries.WithLabelValues(namespace, mode, queryResult(isNew)).Inc()
}

func (p *PrometheusRecorder) ObserveFinalize(namespace, mode string, success bool) {
	if p == nil || p.finalizes == nil {
		return
	}
	p.finalizes.WithLabelValues(namespace, mode, outcome(success)).Inc()
}

func (p *PrometheusRecorder) SetChangedFiles(namespace string, n int) {
	if p == nil || p.changedFiles == nil {
		return
	}
	p.changedFiles.WithLabelValues(namespace).Set(float64(n))
}

func (p *PrometheusRecorder) SetBaseline(namespace string, unixSeconds float64) {
	if p == nil || p.baseline == nil {
		return
	}
	p.baseline.WithLabelValues(namespace).Set(unixSeconds)
}
