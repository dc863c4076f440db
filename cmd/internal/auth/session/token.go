package session

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Token is an opaque 128-bit session token. Only registries create tokens;
// callers receive them from Add and hand them back verbatim.
type Token [16]byte

// newToken returns a cryptographically random token.
// crypto/rand.Read never fails on supported platforms; if the system RNG is
// broken the runtime crashes the process rather than returning an error.
func newToken() Token {
	var t Token
	_, _ = rand.Read(t[:])
	return t
}

// ParseToken parses the 32-char hex form produced by Token.String.
func ParseToken(s string) (Token, error) {
	var t Token
	s = strings.TrimSpace(s)
	if len(s) != hex.EncodedLen(len(t)) {
		return Token{}, ErrInvalidToken
	}
	if _, err := hex.Decode(t[:], []byte(s)); err != nil {
		return Token{}, ErrInvalidToken
	}
	return t, nil
}

// String returns the lowercase hex encoding of t.
func (t Token) String() string {
	return hex.EncodeToString(t[:])
}

// IsZero reports whether t is the zero token.
func (t Token) IsZero() bool {
	return t == Token{}
}

// MarshalText implements encoding.TextMarshaler, so tokens can travel in
// cookies and JSON bodies as plain strings.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Token) UnmarshalText(b []byte) error {
	parsed, err := ParseToken(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
