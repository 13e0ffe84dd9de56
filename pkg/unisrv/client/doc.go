// Package client is the HTTP and WebSocket client for the unisrv provisioning
// API. Requests carry a bearer token from an Authenticator; a rejected token
// is refreshed once and the request retried once.
package client
