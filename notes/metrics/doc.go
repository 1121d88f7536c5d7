// Package metrics exposes counters of the notes server in the Prometheus text format.
//
// Every Metrics value owns its own VictoriaMetrics set, so several servers
// (or tests) in one process never share counters. Process metrics are
// appended on every scrape.
package metrics
