// Package metrics provides optional observability hooks for freshness checks.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so nothing needs nil checks:
//
//	rec := metrics.NewPrometheusRecorder(registry)
//	tracker, err := incremental.New(incremental.Options{Namespace: "docs", Recorder: rec})
//
// Build pipelines are short-lived processes, so instead of serving an HTTP endpoint the
// Prometheus registry is written once per run with WriteTextfile, for pickup by the
// node_exporter textfile collector.
package metrics
