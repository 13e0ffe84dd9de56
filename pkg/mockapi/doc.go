// Package mockapi is an in-memory implementation of the unisrv provisioning
// API. It backs the command tests and the unisrv-mockapi development binary.
//
// State lives in process memory and is scoped per user. Access tokens are
// HS256 JWTs signed with a per-server key, refresh sessions rotate their
// token on every use.
package mockapi
