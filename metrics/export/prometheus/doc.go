// Package prometheus renders credstore engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads [credstore.Engine.MetricsSnapshot] on every
// scrape. Mount [PrometheusExporter.Handler] on a net/http mux or
// [PrometheusExporter.FiberHandler] on a Fiber app. Counters are named
// credstore_*_total; the only histogram is credstore_store_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry.
//   - Mutate engine state.
package prometheus
