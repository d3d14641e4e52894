// Package prometheus serves taskauth counters and the access-token latency
// histogram in the Prometheus text exposition format.
//
// The exporter keeps no registry of its own. Each scrape reads one
// [taskauth.MetricsSnapshot] and renders every counter as
// taskauth_*_total, so a counter that never moved is still published as 0.
package prometheus
