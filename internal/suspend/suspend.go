// Package suspend implements the temporary-suspension workflow: ban on a
// banned-word violation, snapshot the offender's roles, lift the ban after a
// fixed delay, and restore the roles when the user rejoins.
package suspend

import (
	"context"
	"errors"
	"time"
)

// Platform outcomes the engine distinguishes at every call site. The gateway
// implementation maps transport errors onto these.
var (
	ErrForbidden = errors.New("suspend: missing permission")
	ErrNotFound  = errors.New("suspend: target not found")
)

// Suspension is an active temporary ban. The registry keys records by user
// only: a second violation while suspended overwrites the first record, so a
// user suspended in two guilds loses tracking for the earlier one. That
// matches the long-observed behavior of this bot and is asserted by tests.
type Suspension struct {
	UserID    string
	GuildID   string
	ExpiresAt time.Time
}

// SnapshotStore holds the roles a user had at ban time, keyed by
// (user, guild). Take consumes the entry: restoration happens at most once.
type SnapshotStore interface {
	Put(ctx context.Context, userID, guildID string, roleIDs []string) error
	Take(ctx context.Context, userID, guildID string) ([]string, bool, error)
}

// Registry tracks active suspensions, keyed by user.
type Registry interface {
	Put(ctx context.Context, s Suspension) error
	Expired(ctx context.Context, now time.Time) ([]Suspension, error)
	Remove(ctx context.Context, userID string) error
}

// Role carries the position needed for the hierarchy check on restore.
type Role struct {
	ID       string
	Position int
}

// Gateway is the slice of the chat platform the engine needs. Every method
// reports ErrForbidden or ErrNotFound where the platform distinguishes them;
// anything else is a transient failure.
type Gateway interface {
	Ban(guildID, userID, reason string, deleteSeconds int) error
	Unban(guildID, userID, reason string) error
	Kick(guildID, userID, reason string) error
	DeleteMessage(channelID, messageID string) error
	AddRoles(guildID, userID string, roleIDs []string, reason string) error

	// GuildRoles returns the guild's roles and the position of the bot's
	// highest role. The bot cannot grant roles at or above that position.
	GuildRoles(guildID string) ([]Role, int, error)

	// InviteChannel picks a channel in the guild where the bot may create
	// invites, or ErrNotFound when there is none.
	InviteChannel(guildID string) (string, error)
	CreateInvite(channelID string, maxAgeSeconds, maxUses int, reason string) (string, error)

	SendDM(userID, content string) error
	SendChannelMessage(channelID, content string) error
	GuildName(guildID string) string
}

// Violation describes a message that matched a banned word, captured before
// any platform call is made.
type Violation struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	RoleIDs   []string
	Term      string
}

// AuditFunc records an engine decision in the audit trail. Injected by the
// bot so this package stays free of storage concerns.
type AuditFunc func(ctx context.Context, level, guildID, userID, event, details string)
