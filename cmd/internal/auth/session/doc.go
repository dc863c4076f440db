// Package session implements gog's token session registry.
//
// A registry maps opaque 128-bit tokens to the identity that logged in
// (typically a login name). Every successful lookup renews the session for
// another TTL, so active users are never logged out mid-session.
//
// The in-memory registry is the default. Postgres and Redis variants
// implement the same Registry interface for deployments that need sessions
// to survive restarts or be shared across replicas; they store a hash of the
// token, never the token itself.
//
// Transport (cookies, headers) lives outside this package.
package session
