// Package internaldefs holds the shared metric name and help-text table
// used by the otel and prometheus exporters. It is not part of the public
// API surface.
package internaldefs
