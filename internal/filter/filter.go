// Package filter matches message text against the banned-word list.
package filter

import "strings"

// Set is the immutable banned-word set. Matching is case-insensitive and
// whole-token only: a banned word inside a longer word does not match.
type Set struct {
	terms map[string]struct{}
}

func New(terms []string) *Set {
	set := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		set[strings.ToLower(term)] = struct{}{}
	}
	return &Set{terms: set}
}

// Match returns the first whitespace-separated token of text that is a banned
// word.
func (s *Set) Match(text string) (string, bool) {
	for _, token := range strings.Fields(text) {
		lowered := strings.ToLower(token)
		if _, ok := s.terms[lowered]; ok {
			return lowered, true
		}
	}
	return "", false
}
