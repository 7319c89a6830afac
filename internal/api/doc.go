// Package api exposes the scraper's operational HTTP surface: liveness,
// readiness and Prometheus metrics. Serving harvest data to the dashboard is
// left to a separate service reading the store.
package api
