package app

import (
	"errors"

	"gog/cmd/security/token"
)

// ValidateSecurityConfig enforces the token hashing policy at startup.
//
// Fail-fast: a runtime asked for HMAC must never fall back to plain SHA-256
// for stored session tokens.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// Key length is measured in bytes; the key is used raw.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: GOG_REQUIRE_TOKEN_HMAC=true but GOG_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: GOG_REQUIRE_TOKEN_HMAC=true but GOG_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: GOG_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
