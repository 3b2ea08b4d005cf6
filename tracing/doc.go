// Package tracing is a thin wrapper around OpenTelemetry tracing so that the
// rest of the code-base can open and close spans without depending on the
// upstream API surface directly.
package tracing
