// Package otel exports engine counters through an OpenTelemetry meter.
// Counters are observed lazily on collection via a registered callback, so
// the engine's hot paths pay nothing for the export.
package otel
