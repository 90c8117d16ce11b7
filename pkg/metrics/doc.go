/*
Package metrics provides Prometheus instrumentation for the temp-storage
engine: RAM pool occupancy, migration counts, cleaner sweeps, and
persistent-temp commit/disposal counters.

Metrics are registered at package init against the default Prometheus
registry and exposed via Handler for scraping. Callers that embed this
module into an HTTP server mount Handler() under /metrics; cmd/bucketctl
does not serve metrics, and updates them only through the packages it
drives.
*/
package metrics
