package birthday

import (
	"context"
	"testing"
	"time"

	"tess-spy/internal/storage"
)

func TestParseDateLayouts(t *testing.T) {
	inputs := []string{"25-12-1990", "25/12/1990", "1990-12-25", "25 December 1990", "December 25, 1990"}
	for _, input := range inputs {
		parsed, err := ParseDate(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if parsed.Day() != 25 || parsed.Month() != time.December || parsed.Year() != 1990 {
			t.Fatalf("parse %q: got %v", input, parsed)
		}
	}

	if _, err := ParseDate("not a date"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDaysUntilNext(t *testing.T) {
	birthdate := time.Date(1990, time.March, 10, 0, 0, 0, 0, time.UTC)

	now := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	if days := DaysUntilNext(birthdate, now); days != 5 {
		t.Fatalf("expected 5 days, got %d", days)
	}

	// Already past this year: roll over to next year.
	now = time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)
	if days := DaysUntilNext(birthdate, now); days != 364 {
		t.Fatalf("expected 364 days, got %d", days)
	}
}

func TestServiceAddAndDaysUntil(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	service := NewService(store)
	ctx := context.Background()

	normalized, err := service.Add(ctx, "alice", "1990-12-25")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if normalized != "25-12-1990" {
		t.Fatalf("expected normalized date, got %q", normalized)
	}

	now := time.Date(2025, time.December, 20, 0, 0, 0, 0, time.UTC)
	days, ok, err := service.DaysUntil(ctx, "alice", now)
	if err != nil || !ok {
		t.Fatalf("days until: %v %v", ok, err)
	}
	if days != 5 {
		t.Fatalf("expected 5 days, got %d", days)
	}

	if _, ok, _ := service.DaysUntil(ctx, "bob", now); ok {
		t.Fatalf("unknown name should report not found")
	}
}
