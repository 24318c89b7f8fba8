// Package metrics defines the Prometheus instruments exported by the
// service: HTTP traffic, download job outcomes, batch execution, session
// registry size, sweeper activity, and the websocket event channel.
//
// Metrics are registered via promauto at package load and served on a
// dedicated metrics port.
package metrics
