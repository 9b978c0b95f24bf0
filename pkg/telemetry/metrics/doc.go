// Package metrics provides Prometheus metrics for the archival engine.
//
// One Collector owns every metric: ingestion throughput, active holds
// and membership churn, retention run outcomes, export job results,
// audit chain length and verification results, and queue depths. Record
// methods are nil-receiver safe, so metrics stay optional at every call
// site.
//
// # Usage
//
//	collector := metrics.NewCollector(cfg, nil)
//	http.Handle("/metrics", collector.Handler())
package metrics
