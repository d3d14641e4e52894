// Package internaldefs holds the metric names, help strings and bucket labels
// shared by the Prometheus and OTel exporters, so both publish identical
// series for the same taskauth counters.
package internaldefs
