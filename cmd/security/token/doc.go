// Package token provides session-token hashing primitives for gog.
//
// Persistent session registries store the output of HashSessionTokenHex
// instead of the token itself, so a leaked table or keyspace does not leak
// usable sessions.
//
// Modes:
//   - SHA-256(token) when no HMAC key is configured (dev).
//   - HMAC-SHA256(token, key) when GOG_TOKEN_HMAC_KEY is set.
//
// Both produce a stable 64-char hex digest.
//
// Policy: when GOG_REQUIRE_TOKEN_HMAC=true, the server refuses to start
// unless the key is present and at least 32 bytes long.
package token
