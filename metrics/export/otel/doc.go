// Package otel binds goSession engine metrics to an OpenTelemetry Meter.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per verify-latency bucket. A single callback reads the
// engine snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
