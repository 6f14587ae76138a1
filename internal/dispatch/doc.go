// Package dispatch relays notification-scheduling submissions to the
// requestor backend and owns the bearer-token lifecycle around each call.
//
// A submission is sent with the static API key and the scope's current
// token. A token found in a successful response replaces the stored one
// (the backend rotates tokens opportunistically). On a recoverable auth
// failure the failure response is probed for a replacement token at an
// ordered list of locations; if one is found the call is retried exactly
// once with it. The retry's outcome is final; there is no chained
// recovery.
//
// Failures are returned as typed values classified as auth, validation,
// transport or upstream, so callers branch on data rather than on error
// shapes. The dispatcher never interprets backend business semantics.
package dispatch
