// Package metrics defines the Prometheus collectors exported by the mock
// provisioning API.
package metrics
