package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// scriptedTokens hands out queued tokens first, then random ones.
type scriptedTokens struct {
	mu    sync.Mutex
	queue []Token
	draws int
}

func (s *scriptedTokens) next() Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draws++
	if len(s.queue) > 0 {
		tok := s.queue[0]
		s.queue = s.queue[1:]
		return tok
	}
	return newToken()
}

func (s *scriptedTokens) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}

// runRegistryContract verifies the behavior every Registry backend must share.
// newRegistry must return an empty registry with a TTL long enough that no
// session expires while the suite runs, built with opts.
func runRegistryContract(t *testing.T, newRegistry func(t *testing.T, opts ...Option) Registry, uniqueN int) {
	t.Helper()
	ctx := context.Background()

	t.Run("AddThenGet", func(t *testing.T) {
		r := newRegistry(t)
		tok, err := r.Add(ctx, "alice")
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if tok.IsZero() {
			t.Fatalf("Add returned the zero token")
		}

		got, err := r.Get(ctx, tok)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != "alice" {
			t.Fatalf("Get()=%q want=%q", got, "alice")
		}

		// A second lookup still hits (lookups renew, they never consume).
		if _, err := r.Get(ctx, tok); err != nil {
			t.Fatalf("second Get: %v", err)
		}
	})

	t.Run("GetUnknownToken", func(t *testing.T) {
		r := newRegistry(t)
		if _, err := r.Add(ctx, "alice"); err != nil {
			t.Fatalf("Add: %v", err)
		}
		_, err := r.Get(ctx, newToken())
		if !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("Get(unknown) err=%v want ErrSessionNotFound", err)
		}
	})

	t.Run("RemoveThenGet", func(t *testing.T) {
		r := newRegistry(t)
		tok, err := r.Add(ctx, "bob")
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if err := r.Remove(ctx, tok); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if _, err := r.Get(ctx, tok); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("Get after Remove err=%v want ErrSessionNotFound", err)
		}
		// Removing twice is a no-op.
		if err := r.Remove(ctx, tok); err != nil {
			t.Fatalf("second Remove: %v", err)
		}
	})

	t.Run("RemoveUnknownToken", func(t *testing.T) {
		r := newRegistry(t)
		if err := r.Remove(ctx, newToken()); err != nil {
			t.Fatalf("Remove(unknown): %v", err)
		}
	})

	t.Run("SameIdentityGetsDistinctSessions", func(t *testing.T) {
		r := newRegistry(t)
		a, err := r.Add(ctx, "carol")
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		b, err := r.Add(ctx, "carol")
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if a == b {
			t.Fatalf("expected distinct tokens for two logins")
		}
		if err := r.Remove(ctx, a); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if got, err := r.Get(ctx, b); err != nil || got != "carol" {
			t.Fatalf("other session must survive logout: got=%q err=%v", got, err)
		}
	})

	t.Run("TokensAreUnique", func(t *testing.T) {
		r := newRegistry(t)
		seen := make(map[Token]struct{}, uniqueN)
		for i := 0; i < uniqueN; i++ {
			tok, err := r.Add(ctx, fmt.Sprintf("user-%d", i))
			if err != nil {
				t.Fatalf("Add #%d: %v", i, err)
			}
			if _, dup := seen[tok]; dup {
				t.Fatalf("duplicate token after %d adds", i)
			}
			seen[tok] = struct{}{}
		}
	})

	t.Run("AddRedrawsOnCollision", func(t *testing.T) {
		taken, fresh := newToken(), newToken()
		src := &scriptedTokens{queue: []Token{taken, taken, fresh}}
		r := newRegistry(t, withTokenSource(src.next))

		a, err := r.Add(ctx, "alice")
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if a != taken {
			t.Fatalf("first Add must use the first drawn token")
		}

		b, err := r.Add(ctx, "bob")
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if b != fresh {
			t.Fatalf("colliding token was not redrawn")
		}
		if n := src.count(); n != 3 {
			t.Fatalf("draws=%d want 3", n)
		}

		if got, err := r.Get(ctx, a); err != nil || got != "alice" {
			t.Fatalf("existing session overwritten: got=%q err=%v", got, err)
		}
		if got, err := r.Get(ctx, b); err != nil || got != "bob" {
			t.Fatalf("Get(redrawn): got=%q err=%v", got, err)
		}
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		r := newRegistry(t)
		if err := r.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := r.Close(); err != nil {
			t.Fatalf("second Close: %v", err)
		}
	})
}
