// Package handlers implements the HTTP API: workflow lifecycle endpoints
// plus health and readiness probes.
package handlers
