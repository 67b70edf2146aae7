// Package metrics exposes control plane counters and gauges through a
// Prometheus registry served on /metrics.
package metrics
