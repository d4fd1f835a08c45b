package suspend

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeGateway struct {
	bans       []string
	unbans     []string
	kicks      []string
	deleted    []string
	dms        []string
	notices    []string
	granted    map[string][]string
	roles      map[string][]Role
	botTop     int
	banErr     error
	unbanErr   error
	inviteErr  error
	dmErr      error
	rolesErr   error
	addRoleErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{granted: make(map[string][]string), roles: make(map[string][]Role), botTop: 10}
}

func (g *fakeGateway) Ban(guildID, userID, reason string, deleteSeconds int) error {
	if g.banErr != nil {
		return g.banErr
	}
	g.bans = append(g.bans, guildID+"|"+userID+"|"+reason)
	return nil
}

func (g *fakeGateway) Unban(guildID, userID, reason string) error {
	if g.unbanErr != nil {
		return g.unbanErr
	}
	g.unbans = append(g.unbans, guildID+"|"+userID)
	return nil
}

func (g *fakeGateway) Kick(guildID, userID, reason string) error {
	g.kicks = append(g.kicks, guildID+"|"+userID)
	return nil
}

func (g *fakeGateway) DeleteMessage(channelID, messageID string) error {
	g.deleted = append(g.deleted, channelID+"|"+messageID)
	return nil
}

func (g *fakeGateway) AddRoles(guildID, userID string, roleIDs []string, reason string) error {
	if g.addRoleErr != nil {
		return g.addRoleErr
	}
	g.granted[guildID+"|"+userID] = append([]string(nil), roleIDs...)
	return nil
}

func (g *fakeGateway) GuildRoles(guildID string) ([]Role, int, error) {
	if g.rolesErr != nil {
		return nil, 0, g.rolesErr
	}
	return g.roles[guildID], g.botTop, nil
}

func (g *fakeGateway) InviteChannel(guildID string) (string, error) {
	return "invite-channel", nil
}

func (g *fakeGateway) CreateInvite(channelID string, maxAgeSeconds, maxUses int, reason string) (string, error) {
	if g.inviteErr != nil {
		return "", g.inviteErr
	}
	return "https://discord.gg/test", nil
}

func (g *fakeGateway) SendDM(userID, content string) error {
	if g.dmErr != nil {
		return g.dmErr
	}
	g.dms = append(g.dms, userID+"|"+content)
	return nil
}

func (g *fakeGateway) SendChannelMessage(channelID, content string) error {
	g.notices = append(g.notices, channelID+"|"+content)
	return nil
}

func (g *fakeGateway) GuildName(guildID string) string {
	return "guild-" + guildID
}

func newTestEngine(gw Gateway) (*Engine, *MemorySnapshots, *MemoryRegistry) {
	snapshots := NewMemorySnapshots()
	registry := NewMemoryRegistry()
	cfg := Config{
		Duration:             time.Minute,
		SweepInterval:        30 * time.Second,
		WaitingRoomChannelID: "waiting-room",
		BannedWords:          []string{"roblox", "trans"},
	}
	return New(cfg, gw, snapshots, registry, zap.NewNop(), nil), snapshots, registry
}

func TestViolationBansAndRecordsState(t *testing.T) {
	gw := newFakeGateway()
	engine, snapshots, registry := newTestEngine(gw)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	engine.SetClock(func() time.Time { return start })

	engine.OnViolation(context.Background(), Violation{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: "m1",
		UserID:    "u1",
		RoleIDs:   []string{"r1", "r2"},
		Term:      "trans",
	})

	roles, ok, _ := snapshots.Take(context.Background(), "u1", "g1")
	if !ok || len(roles) != 2 {
		t.Fatalf("expected snapshot with 2 roles, got %v %v", roles, ok)
	}
	due, _ := registry.Expired(context.Background(), start.Add(time.Minute))
	if len(due) != 1 || due[0].GuildID != "g1" {
		t.Fatalf("expected one due suspension for g1, got %v", due)
	}
	if len(gw.bans) != 1 || !strings.Contains(gw.bans[0], "trans") {
		t.Fatalf("expected ban with matched term in reason, got %v", gw.bans)
	}
	if len(gw.dms) != 1 || !strings.Contains(gw.dms[0], "roblox, trans") {
		t.Fatalf("expected dm carrying the banned-word list, got %v", gw.dms)
	}
	if len(gw.deleted) != 1 || len(gw.notices) != 1 {
		t.Fatalf("expected message deletion and public notice, got %v %v", gw.deleted, gw.notices)
	}
}

func TestViolationBanFailureKeepsState(t *testing.T) {
	gw := newFakeGateway()
	gw.banErr = ErrForbidden
	engine, snapshots, registry := newTestEngine(gw)
	start := time.Now()

	engine.OnViolation(context.Background(), Violation{
		GuildID: "g1", ChannelID: "c1", MessageID: "m1", UserID: "u1", Term: "roblox",
	})

	// Snapshot and record stay even though the ban failed.
	if _, ok, _ := snapshots.Take(context.Background(), "u1", "g1"); !ok {
		t.Fatalf("snapshot should survive a failed ban")
	}
	due, _ := registry.Expired(context.Background(), start.Add(2*time.Minute))
	if len(due) != 1 {
		t.Fatalf("suspension record should survive a failed ban")
	}
	if len(gw.notices) != 1 || !strings.Contains(gw.notices[0], "permission") {
		t.Fatalf("expected a permission failure notice, got %v", gw.notices)
	}
}

func TestSweepTiming(t *testing.T) {
	gw := newFakeGateway()
	engine, _, registry := newTestEngine(gw)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	engine.SetClock(func() time.Time { return now })

	engine.OnViolation(context.Background(), Violation{GuildID: "g1", ChannelID: "c1", MessageID: "m1", UserID: "u1", Term: "roblox"})

	now = start.Add(59 * time.Second)
	engine.Sweep(context.Background())
	if len(gw.unbans) != 0 {
		t.Fatalf("suspension must not expire before its full duration")
	}

	now = start.Add(60 * time.Second)
	engine.Sweep(context.Background())
	if len(gw.unbans) != 1 || gw.unbans[0] != "g1|u1" {
		t.Fatalf("expected unban at expiry, got %v", gw.unbans)
	}
	due, _ := registry.Expired(context.Background(), now.Add(time.Hour))
	if len(due) != 0 {
		t.Fatalf("record should be removed after expiry")
	}
	if len(gw.dms) != 2 {
		t.Fatalf("expected suspension dm plus rejoin dm, got %d", len(gw.dms))
	}
}

func TestSweepToleratesMissingBan(t *testing.T) {
	gw := newFakeGateway()
	engine, _, registry := newTestEngine(gw)
	now := time.Now()
	engine.SetClock(func() time.Time { return now })

	_ = registry.Put(context.Background(), Suspension{UserID: "u1", GuildID: "g1", ExpiresAt: now.Add(-time.Second)})
	gw.unbanErr = ErrNotFound

	engine.Sweep(context.Background())

	due, _ := registry.Expired(context.Background(), now.Add(time.Hour))
	if len(due) != 0 {
		t.Fatalf("record must be removed even when the user was never banned")
	}
	if len(gw.dms) != 0 {
		t.Fatalf("no rejoin dm when there was nothing to unban")
	}
}

func TestSweepRemovesRecordOnForbidden(t *testing.T) {
	gw := newFakeGateway()
	engine, _, registry := newTestEngine(gw)
	now := time.Now()
	engine.SetClock(func() time.Time { return now })

	_ = registry.Put(context.Background(), Suspension{UserID: "u1", GuildID: "g1", ExpiresAt: now.Add(-time.Second)})
	gw.unbanErr = ErrForbidden

	engine.Sweep(context.Background())
	gw.unbanErr = nil
	engine.Sweep(context.Background())

	// At most once: no second attempt after the forbidden failure.
	if len(gw.unbans) != 0 {
		t.Fatalf("expiry must never be retried, got %v", gw.unbans)
	}
}

func TestRestoreFiltersRoleHierarchy(t *testing.T) {
	gw := newFakeGateway()
	gw.roles["g1"] = []Role{{ID: "r1", Position: 3}, {ID: "r2", Position: 15}}
	gw.botTop = 10
	engine, snapshots, _ := newTestEngine(gw)

	// r3 no longer exists in the guild, r2 outranks the bot.
	_ = snapshots.Put(context.Background(), "u1", "g1", []string{"r1", "r2", "r3"})
	engine.OnMemberJoin(context.Background(), "g1", "u1")

	granted := gw.granted["g1|u1"]
	if len(granted) != 1 || granted[0] != "r1" {
		t.Fatalf("expected only r1 granted, got %v", granted)
	}
}

func TestRestoreAtMostOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.roles["g1"] = []Role{{ID: "r1", Position: 1}}
	engine, snapshots, _ := newTestEngine(gw)

	_ = snapshots.Put(context.Background(), "u1", "g1", []string{"r1"})
	engine.OnMemberJoin(context.Background(), "g1", "u1")
	delete(gw.granted, "g1|u1")
	engine.OnMemberJoin(context.Background(), "g1", "u1")

	if len(gw.granted["g1|u1"]) != 0 {
		t.Fatalf("second join must not grant roles again")
	}
}

func TestRestoreNoSnapshotIsNoOp(t *testing.T) {
	gw := newFakeGateway()
	engine, _, _ := newTestEngine(gw)

	engine.OnMemberJoin(context.Background(), "g1", "u1")
	engine.OnMemberJoin(context.Background(), "g1", "u1")

	if len(gw.granted) != 0 {
		t.Fatalf("no snapshot means no grant, got %v", gw.granted)
	}
}

func TestRestoreDiscardsSnapshotOnGrantFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.roles["g1"] = []Role{{ID: "r1", Position: 1}}
	gw.addRoleErr = ErrForbidden
	engine, snapshots, _ := newTestEngine(gw)

	_ = snapshots.Put(context.Background(), "u1", "g1", []string{"r1"})
	engine.OnMemberJoin(context.Background(), "g1", "u1")

	if _, ok, _ := snapshots.Take(context.Background(), "u1", "g1"); ok {
		t.Fatalf("snapshot must be consumed even when the grant fails")
	}
}

func TestSecondViolationOverwritesRegistry(t *testing.T) {
	gw := newFakeGateway()
	engine, snapshots, registry := newTestEngine(gw)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	engine.SetClock(func() time.Time { return start })

	engine.OnViolation(context.Background(), Violation{GuildID: "g1", ChannelID: "c1", MessageID: "m1", UserID: "u1", RoleIDs: []string{"r1"}, Term: "roblox"})
	engine.OnViolation(context.Background(), Violation{GuildID: "g2", ChannelID: "c2", MessageID: "m2", UserID: "u1", RoleIDs: []string{"r9"}, Term: "trans"})

	// Snapshots are guild-scoped and both survive.
	if _, ok, _ := snapshots.Take(context.Background(), "u1", "g1"); !ok {
		t.Fatalf("g1 snapshot lost")
	}
	if _, ok, _ := snapshots.Take(context.Background(), "u1", "g2"); !ok {
		t.Fatalf("g2 snapshot lost")
	}

	// The registry is user-keyed: only the g2 suspension remains, so the g1
	// ban is never auto-expired. Long-standing behavior, kept on purpose.
	due, _ := registry.Expired(context.Background(), start.Add(time.Hour))
	if len(due) != 1 || due[0].GuildID != "g2" {
		t.Fatalf("expected a single record pointing at g2, got %v", due)
	}
}

func TestRejoinBeforeExpiryStillRestores(t *testing.T) {
	gw := newFakeGateway()
	gw.roles["g1"] = []Role{{ID: "r1", Position: 1}}
	engine, _, registry := newTestEngine(gw)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	engine.SetClock(func() time.Time { return start })

	engine.OnViolation(context.Background(), Violation{GuildID: "g1", ChannelID: "c1", MessageID: "m1", UserID: "u1", RoleIDs: []string{"r1"}, Term: "roblox"})

	// Operator unbanned by hand; the user rejoins before the sweep fires.
	engine.OnMemberJoin(context.Background(), "g1", "u1")
	if granted := gw.granted["g1|u1"]; len(granted) != 1 {
		t.Fatalf("restoration is keyed independently of the registry, got %v", granted)
	}

	// The sweep later finds nobody to unban and clears the record.
	gw.unbanErr = ErrNotFound
	engine.SetClock(func() time.Time { return start.Add(2 * time.Minute) })
	engine.Sweep(context.Background())
	due, _ := registry.Expired(context.Background(), start.Add(time.Hour))
	if len(due) != 0 {
		t.Fatalf("record should be cleared, got %v", due)
	}
}
