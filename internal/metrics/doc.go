// Package metrics wires Qakka's operational counters and gauges, named in
// §B of SPEC_FULL.md, onto github.com/prometheus/client_golang.
package metrics
