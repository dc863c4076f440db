package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewULID_EncodesTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewULID(now)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	if len(s) != 26 {
		t.Fatalf("len=%d want 26", len(s))
	}

	id, err := ulid.Parse(s)
	if err != nil {
		t.Fatalf("ulid.Parse(%q): %v", s, err)
	}
	if got := ulid.Time(id.Time()); !got.Equal(now) {
		t.Fatalf("timestamp=%v want=%v", got, now)
	}
}

func TestNewULID_SortsByTime(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, _ := NewULID(base)
	b, _ := NewULID(base.Add(time.Millisecond))
	if a >= b {
		t.Fatalf("expected %q < %q", a, b)
	}
}

func TestNewULID_ZeroTimeUsesNow(t *testing.T) {
	t.Parallel()

	s, err := NewULID(time.Time{})
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	id := ulid.MustParse(s)
	if d := time.Since(ulid.Time(id.Time())); d < 0 || d > time.Minute {
		t.Fatalf("timestamp not close to now: %v", d)
	}
}
