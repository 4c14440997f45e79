// Package metrics exposes Prometheus collectors for the invocation
// engine: request outcomes and durations, per-kind action counts,
// command outcomes, live sandbox count, and shim call results.
package metrics
