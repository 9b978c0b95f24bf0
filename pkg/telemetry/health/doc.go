// Package health exposes liveness and readiness probes for the archival
// engine. Readiness aggregates concurrent probes of the archive and
// audit databases and the blob gateway; any failing probe degrades the
// overall status to 503.
package health
