// Package httpserver provides the bootstrap daemon's diagnostics API:
// liveness, readiness and drain endpoints plus optional pprof, with the
// Prometheus scrape endpoint on a separate listener. Readiness reflects
// whether the node bootstrap fan-out has completed.
package httpserver
