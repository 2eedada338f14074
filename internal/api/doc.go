// Package api exposes the harvester's read-only HTTP surface: liveness,
// readiness, Prometheus metrics and the live progress of the running session.
package api
