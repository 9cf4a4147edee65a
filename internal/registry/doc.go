// Package registry provides the in-memory session-to-agent connection
// registry with configurable duplicate-login handling.
package registry
