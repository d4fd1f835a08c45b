package dmsched

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestScheduler(send SendFunc) (*Scheduler, *time.Time) {
	s := New(send, zap.NewNop())
	now := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestScheduleReplacesPending(t *testing.T) {
	s, _ := newTestScheduler(func(string, string) error { return nil })

	if _, replaced := s.Schedule("u1", "hello", time.Minute); replaced {
		t.Fatalf("first schedule should not replace anything")
	}
	replacedUser, replaced := s.Schedule("u2", "hi", time.Minute)
	if !replaced || replacedUser != "u1" {
		t.Fatalf("expected u1 replaced, got %q %v", replacedUser, replaced)
	}
	if userID, _, ok := s.Pending(); !ok || userID != "u2" {
		t.Fatalf("expected u2 pending, got %q %v", userID, ok)
	}
}

func TestDeliverOnlyWhenDue(t *testing.T) {
	var sentUser, sentMessage string
	sends := 0
	s, now := newTestScheduler(func(userID, message string) error {
		sends++
		sentUser, sentMessage = userID, message
		return nil
	})

	s.Schedule("u1", "happy birthday", time.Minute)

	s.deliverDue()
	if sends != 0 {
		t.Fatalf("delivered before due time")
	}

	*now = now.Add(time.Minute)
	s.deliverDue()
	if sends != 1 || sentUser != "u1" || sentMessage != "happy birthday" {
		t.Fatalf("expected one delivery to u1, got %d %q %q", sends, sentUser, sentMessage)
	}

	// Slot is consumed after delivery.
	s.deliverDue()
	if sends != 1 {
		t.Fatalf("slot should be empty after delivery")
	}
	if _, _, ok := s.Pending(); ok {
		t.Fatalf("expected no pending message")
	}
}

func TestCancel(t *testing.T) {
	s, now := newTestScheduler(func(string, string) error {
		t.Fatalf("cancelled message must not be delivered")
		return nil
	})

	s.Schedule("u1", "hello", time.Minute)
	userID, ok := s.Cancel()
	if !ok || userID != "u1" {
		t.Fatalf("expected cancel of u1, got %q %v", userID, ok)
	}
	if _, ok := s.Cancel(); ok {
		t.Fatalf("second cancel should report nothing pending")
	}

	*now = now.Add(2 * time.Minute)
	s.deliverDue()
}
