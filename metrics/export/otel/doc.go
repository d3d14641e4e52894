// Package otel exposes taskauth metrics through an OpenTelemetry Meter.
//
// [New] registers an Int64ObservableCounter for each taskauth counter and an
// Int64ObservableGauge per latency bucket. One callback reads
// [taskauth.Engine.MetricsSnapshot] on each collection cycle. Callers own the
// MeterProvider.
package otel
