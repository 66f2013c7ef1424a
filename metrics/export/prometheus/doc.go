// Package prometheus renders goSession engine metrics in the Prometheus text
// exposition format.
//
// [NewExporter] accepts any [Source], normally a *goSession.Engine, and
// exposes an [http.Handler]. Counters are named gosession_*_total; the single
// histogram is gosession_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register anything in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
