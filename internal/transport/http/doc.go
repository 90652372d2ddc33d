// Package http implements §4.5's inter-region transport plus the
// operator-facing HTTP surface (health, metrics, and the admin
// operations cmd/qakka's CLI drives): a chi router wrapped in otelhttp,
// grounded on the teacher's api/router.go (n0rdy-forq), and an outbound
// otelhttp-instrumented client implementing facade.Forwarder for sends
// that must cross a region boundary.
package http
