// Package birthday keeps member birthdays and answers "days until next".
package birthday

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tess-spy/internal/storage"
)

// DisplayLayout is the format birthdays are stored and shown in.
const DisplayLayout = "02-01-2006"

// parseLayouts are the accepted input formats, day-first preferred.
var parseLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2-1-2006",
	"2/1/2006",
	"2006-01-02",
	"2 January 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDate accepts a birthdate in any supported layout.
func ParseDate(input string) (time.Time, error) {
	trimmed := strings.TrimSpace(input)
	for _, layout := range parseLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", input)
}

// DaysUntilNext counts whole days from now to the next occurrence of the
// birthdate's day and month.
func DaysUntilNext(birthdate, now time.Time) int {
	next := time.Date(now.Year(), birthdate.Month(), birthdate.Day(), 0, 0, 0, 0, now.Location())
	if now.After(next) {
		next = next.AddDate(1, 0, 0)
	}
	return int(next.Sub(now).Hours() / 24)
}

type Service struct {
	store *storage.Store
}

func NewService(store *storage.Store) *Service {
	return &Service{store: store}
}

// Add parses and stores a birthday, returning the normalized date string.
func (s *Service) Add(ctx context.Context, name, rawDate string) (string, error) {
	parsed, err := ParseDate(rawDate)
	if err != nil {
		return "", err
	}
	normalized := parsed.Format(DisplayLayout)
	if err := s.store.UpsertBirthday(ctx, name, normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

func (s *Service) Delete(ctx context.Context, name string) error {
	return s.store.DeleteBirthday(ctx, name)
}

func (s *Service) Get(ctx context.Context, name string) (string, bool, error) {
	return s.store.GetBirthday(ctx, name)
}

func (s *Service) List(ctx context.Context) (map[string]string, error) {
	return s.store.ListBirthdays(ctx)
}

// DaysUntil reports the days until name's next birthday.
func (s *Service) DaysUntil(ctx context.Context, name string, now time.Time) (int, bool, error) {
	stored, ok, err := s.store.GetBirthday(ctx, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	parsed, err := time.Parse(DisplayLayout, stored)
	if err != nil {
		return 0, false, err
	}
	return DaysUntilNext(parsed, now), true, nil
}
