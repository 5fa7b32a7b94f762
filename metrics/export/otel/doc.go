// Package otel binds credstore engine metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers a single credstore.operations counter whose
// data points carry operation and outcome attributes (login/success,
// refresh/expired, cleanup/reset_removed, ...). Store latency is published as
// a cumulative bucket gauge keyed by the le attribute plus a count gauge.
// One callback reads [credstore.Engine.MetricsSnapshot] per collection.
//
// Callers own the MeterProvider.
package otel
