package storage

import (
	"context"
	"testing"
	"time"

	"tess-spy/internal/suspend"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestUpsertBirthday(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertBirthday(ctx, "alice", "01-02-1990"); err != nil {
		t.Fatalf("upsert birthday: %v", err)
	}
	if err := store.UpsertBirthday(ctx, "alice", "02-03-1991"); err != nil {
		t.Fatalf("update birthday: %v", err)
	}

	birthdate, ok, err := store.GetBirthday(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("get birthday: %v %v", ok, err)
	}
	if birthdate != "02-03-1991" {
		t.Fatalf("expected updated birthdate, got %q", birthdate)
	}

	if err := store.DeleteBirthday(ctx, "alice"); err != nil {
		t.Fatalf("delete birthday: %v", err)
	}
	if _, ok, _ := store.GetBirthday(ctx, "alice"); ok {
		t.Fatalf("expected birthday removed")
	}
}

func TestMessageLogRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := MessageLog{
		User:        "alice",
		Message:     "hello",
		Time:        "2025-01-01 12:00:00",
		Attachments: []string{"https://cdn.example/a.png"},
		Guild:       "Test Guild",
		Channel:     "general",
	}
	if err := store.AddMessageLog(ctx, entry); err != nil {
		t.Fatalf("add message log: %v", err)
	}

	logs, err := store.ListMessageLogs(ctx, 10)
	if err != nil {
		t.Fatalf("list message logs: %v", err)
	}
	if len(logs) != 1 || logs[0].User != "alice" || logs[0].Message != "hello" {
		t.Fatalf("unexpected logs: %+v", logs)
	}

	if err := store.DeleteAllMessageLogs(ctx); err != nil {
		t.Fatalf("delete logs: %v", err)
	}
	logs, _ = store.ListMessageLogs(ctx, 10)
	if len(logs) != 0 {
		t.Fatalf("expected empty logs, got %d", len(logs))
	}
}

func TestLoggingChannels(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddLoggingChannel(ctx, "c1"); err != nil {
		t.Fatalf("add channel: %v", err)
	}
	// Adding twice is a no-op.
	if err := store.AddLoggingChannel(ctx, "c1"); err != nil {
		t.Fatalf("re-add channel: %v", err)
	}

	channels, err := store.ListLoggingChannels(ctx)
	if err != nil || len(channels) != 1 {
		t.Fatalf("expected one channel, got %v %v", channels, err)
	}

	if err := store.RemoveLoggingChannel(ctx, "c1"); err != nil {
		t.Fatalf("remove channel: %v", err)
	}
	channels, _ = store.ListLoggingChannels(ctx)
	if len(channels) != 0 {
		t.Fatalf("expected no channels, got %v", channels)
	}
}

func TestSnapshotsTakeConsumes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	snapshots := store.Snapshots()

	if err := snapshots.Put(ctx, "u1", "g1", []string{"r1", "r2"}); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}

	roles, ok, err := snapshots.Take(ctx, "u1", "g1")
	if err != nil || !ok {
		t.Fatalf("take snapshot: %v %v", ok, err)
	}
	if len(roles) != 2 || roles[0] != "r1" {
		t.Fatalf("unexpected roles: %v", roles)
	}

	if _, ok, _ := snapshots.Take(ctx, "u1", "g1"); ok {
		t.Fatalf("snapshot should be consumed")
	}
}

func TestSuspensionsExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	registry := store.Suspensions()
	now := time.Now().Truncate(time.Second)

	rec := suspend.Suspension{UserID: "u1", GuildID: "g1", ExpiresAt: now.Add(time.Minute)}
	if err := registry.Put(ctx, rec); err != nil {
		t.Fatalf("put suspension: %v", err)
	}

	due, err := registry.Expired(ctx, now)
	if err != nil || len(due) != 0 {
		t.Fatalf("nothing should be due yet: %v %v", due, err)
	}

	due, err = registry.Expired(ctx, now.Add(time.Minute))
	if err != nil || len(due) != 1 || due[0].GuildID != "g1" {
		t.Fatalf("expected one due suspension: %v %v", due, err)
	}

	// A second record for the same user overwrites the first.
	rec.GuildID = "g2"
	if err := registry.Put(ctx, rec); err != nil {
		t.Fatalf("overwrite suspension: %v", err)
	}
	due, _ = registry.Expired(ctx, now.Add(time.Minute))
	if len(due) != 1 || due[0].GuildID != "g2" {
		t.Fatalf("expected overwritten record, got %v", due)
	}

	if err := registry.Remove(ctx, "u1"); err != nil {
		t.Fatalf("remove suspension: %v", err)
	}
	due, _ = registry.Expired(ctx, now.Add(time.Hour))
	if len(due) != 0 {
		t.Fatalf("expected empty registry, got %v", due)
	}
}
