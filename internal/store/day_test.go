package store

import (
	"testing"
	"time"

	"apptbook/internal/domain"
)

func TestLockOrder(t *testing.T) {
	mar3 := domain.NewDate(2026, 3, 3)
	mar1 := domain.NewDate(2026, 3, 1)

	got := LockOrder([]time.Time{mar3, mar1, mar3.Add(5 * time.Hour), mar1})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (%v)", len(got), got)
	}
	if !got[0].Equal(mar1) || !got[1].Equal(mar3) {
		t.Fatalf("order = %v, want [%s %s]", got, mar1, mar3)
	}
}

func TestLockKey(t *testing.T) {
	if got := LockKey("b1", domain.NewDate(2026, 3, 1)); got != "b1|2026-03-01" {
		t.Fatalf("LockKey = %q", got)
	}
}
