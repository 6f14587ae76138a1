// Package credstore holds the credentials attached to outbound backend
// requests: the static API key and at most one bearer token per scope.
//
// Two token scopes are supported with different sharing tradeoffs:
//   - Memory: one process-wide token shared by every submission. Correct
//     only for single-tenant deployments; last write wins under load.
//   - Cookie: one token per browser session, carried in an HTTP-only
//     cookie. No shared mutable state, race-free by construction.
//
// The static API key is resolved once at startup through a KeySource
// (config literal or OS keyring) and never mutated afterwards.
package credstore
