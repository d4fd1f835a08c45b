package filter

import "testing"

func TestMatchWholeToken(t *testing.T) {
	set := New([]string{"roblox", "trans"})

	if term, ok := set.Match("I love roblox"); !ok || term != "roblox" {
		t.Fatalf("expected roblox match, got %q %v", term, ok)
	}
	if _, ok := set.Match("I love robloxing"); ok {
		t.Fatalf("substring should not match")
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	set := New([]string{"Roblox"})

	if term, ok := set.Match("ROBLOX is great"); !ok || term != "roblox" {
		t.Fatalf("expected case-insensitive match, got %q %v", term, ok)
	}
}

func TestMatchFirstToken(t *testing.T) {
	set := New([]string{"trans", "roblox"})

	if term, ok := set.Match("roblox and trans"); !ok || term != "roblox" {
		t.Fatalf("expected first matching token, got %q %v", term, ok)
	}
}

func TestShortTermMatchesExactTokenOnly(t *testing.T) {
	set := New([]string{"bi"})

	// "bi" as its own token matches even when accidental.
	if _, ok := set.Match("a bi word"); !ok {
		t.Fatalf("expected exact short token to match")
	}
	if _, ok := set.Match("bicycle rides"); ok {
		t.Fatalf("embedded short term should not match")
	}
}

func TestNoMatch(t *testing.T) {
	set := New([]string{"roblox"})

	if _, ok := set.Match("hello there"); ok {
		t.Fatalf("did not expect a match")
	}
	if _, ok := set.Match(""); ok {
		t.Fatalf("empty text should not match")
	}
}
