package suspend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Config struct {
	Duration             time.Duration
	SweepInterval        time.Duration
	WaitingRoomGuildID   string
	WaitingRoomChannelID string
	BannedWords          []string
}

// Engine orchestrates the ban, expiry sweep, and role restoration paths. All
// three entry points share the two stores, so the stores carry their own
// locking; the engine itself is stateless between calls.
type Engine struct {
	cfg       Config
	gw        Gateway
	snapshots SnapshotStore
	registry  Registry
	logger    *zap.Logger
	audit     AuditFunc
	now       func() time.Time
}

func New(cfg Config, gw Gateway, snapshots SnapshotStore, registry Registry, logger *zap.Logger, audit AuditFunc) *Engine {
	if cfg.Duration <= 0 {
		cfg.Duration = time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	return &Engine{
		cfg:       cfg,
		gw:        gw,
		snapshots: snapshots,
		registry:  registry,
		logger:    logger,
		audit:     audit,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// OnViolation runs the ban path. The snapshot and registry writes land before
// any platform call so a transient platform failure cannot lose the intent to
// restore roles later.
func (e *Engine) OnViolation(ctx context.Context, v Violation) {
	if err := e.snapshots.Put(ctx, v.UserID, v.GuildID, v.RoleIDs); err != nil {
		e.logger.Error("role snapshot write failed", zap.String("user_id", v.UserID), zap.Error(err))
	}
	e.logger.Info("stored roles for suspended user",
		zap.String("user_id", v.UserID),
		zap.String("guild_id", v.GuildID),
		zap.Strings("role_ids", v.RoleIDs))

	rec := Suspension{UserID: v.UserID, GuildID: v.GuildID, ExpiresAt: e.now().Add(e.cfg.Duration)}
	if err := e.registry.Put(ctx, rec); err != nil {
		e.logger.Error("suspension record write failed", zap.String("user_id", v.UserID), zap.Error(err))
	}

	if err := e.banAndNotify(ctx, v); err != nil {
		if errors.Is(err, ErrForbidden) {
			_ = e.gw.SendChannelMessage(v.ChannelID, "I don't have permission to perform this action.")
		} else {
			_ = e.gw.SendChannelMessage(v.ChannelID, "An error occurred while processing the suspension.")
		}
		e.logger.Error("suspension incomplete",
			zap.String("user_id", v.UserID),
			zap.String("guild_id", v.GuildID),
			zap.Error(err))
		e.recordAudit(ctx, LevelWarn, v.GuildID, v.UserID, "temp_ban_failed", err.Error())
		return
	}

	e.recordAudit(ctx, LevelCrit, v.GuildID, v.UserID, "temp_ban", "banned word: "+v.Term)
}

func (e *Engine) banAndNotify(ctx context.Context, v Violation) error {
	_ = ctx
	reason := "Used banned word: " + v.Term

	// No message window: the triggering message is deleted explicitly below.
	if err := e.gw.Ban(v.GuildID, v.UserID, reason, 0); err != nil {
		return fmt.Errorf("ban: %w", err)
	}

	invite, err := e.gw.CreateInvite(e.cfg.WaitingRoomChannelID, 0, 1, "waiting room for suspended user")
	if err != nil {
		return fmt.Errorf("waiting room invite: %w", err)
	}
	dm := fmt.Sprintf(
		"You have been temporarily suspended from %s for using the banned word: **%s**\n"+
			"The suspension will last for %s.\n\n"+
			"Please join our waiting room server to be notified when your suspension expires: %s\n\n"+
			"⚠️ Note: The following words are banned:\n```\n%s```",
		e.gw.GuildName(v.GuildID), v.Term, formatDuration(e.cfg.Duration), invite,
		strings.Join(e.cfg.BannedWords, ", "))
	if err := e.gw.SendDM(v.UserID, dm); err != nil {
		return fmt.Errorf("suspension dm: %w", err)
	}

	// Ban already removed the member; the kick is defensive and NotFound is
	// the expected answer.
	if err := e.gw.Kick(v.GuildID, v.UserID, reason); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("kick: %w", err)
	}
	if err := e.gw.DeleteMessage(v.ChannelID, v.MessageID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete message: %w", err)
	}

	notice := fmt.Sprintf(
		"🚫 <@%s> has been temporarily suspended for using the banned word: **%s**\n"+
			"They will be able to rejoin in %s.",
		v.UserID, v.Term, formatDuration(e.cfg.Duration))
	if err := e.gw.SendChannelMessage(v.ChannelID, notice); err != nil {
		return fmt.Errorf("channel notice: %w", err)
	}
	return nil
}

// Run drives the expiry sweep until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep expires every due suspension. Expiry is attempted at most once: the
// record is removed whether or not the unban succeeded, so a failed unban
// needs operator intervention rather than producing a retry storm.
func (e *Engine) Sweep(ctx context.Context) {
	due, err := e.registry.Expired(ctx, e.now())
	if err != nil {
		e.logger.Error("suspension registry scan failed", zap.Error(err))
		return
	}

	for _, rec := range due {
		e.expire(ctx, rec)
		if err := e.registry.Remove(ctx, rec.UserID); err != nil {
			e.logger.Error("suspension record removal failed", zap.String("user_id", rec.UserID), zap.Error(err))
		}
	}
}

func (e *Engine) expire(ctx context.Context, rec Suspension) {
	err := e.gw.Unban(rec.GuildID, rec.UserID, "Temporary ban expired")
	switch {
	case err == nil:
		e.logger.Info("unbanned user", zap.String("user_id", rec.UserID), zap.String("guild_id", rec.GuildID))
	case errors.Is(err, ErrNotFound):
		// Never banned, already unbanned by hand, or the guild is gone.
		e.logger.Info("nothing to unban", zap.String("user_id", rec.UserID), zap.String("guild_id", rec.GuildID))
		return
	case errors.Is(err, ErrForbidden):
		e.logger.Error("missing permission to unban", zap.String("user_id", rec.UserID), zap.String("guild_id", rec.GuildID))
		e.recordAudit(ctx, LevelWarn, rec.GuildID, rec.UserID, "unban_failed", "missing permission")
		return
	default:
		e.logger.Error("unban failed", zap.String("user_id", rec.UserID), zap.String("guild_id", rec.GuildID), zap.Error(err))
		return
	}

	e.recordAudit(ctx, LevelInfo, rec.GuildID, rec.UserID, "temp_ban_expired", "")

	channelID, err := e.gw.InviteChannel(rec.GuildID)
	if err != nil {
		e.logger.Warn("no invite channel for expired suspension", zap.String("guild_id", rec.GuildID), zap.Error(err))
		return
	}
	invite, err := e.gw.CreateInvite(channelID, 0, 1, "Temporary ban expired")
	if err != nil {
		e.logger.Warn("rejoin invite failed", zap.String("guild_id", rec.GuildID), zap.Error(err))
		return
	}
	dm := fmt.Sprintf(
		"Your temporary ban from %s has expired! You can rejoin using this invite: %s\n"+
			"This invite will never expire.",
		e.gw.GuildName(rec.GuildID), invite)
	if err := e.gw.SendDM(rec.UserID, dm); err != nil {
		e.logger.Warn("rejoin dm failed", zap.String("user_id", rec.UserID), zap.Error(err))
	}
}

// OnMemberJoin restores the roles captured at ban time. The snapshot is
// consumed up front, so restoration happens at most once even if the grant
// fails or join events arrive twice.
func (e *Engine) OnMemberJoin(ctx context.Context, guildID, userID string) {
	stored, ok, err := e.snapshots.Take(ctx, userID, guildID)
	if err != nil {
		e.logger.Error("role snapshot read failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	roles, botTop, err := e.gw.GuildRoles(guildID)
	if err != nil {
		e.logger.Error("guild roles unavailable, snapshot discarded",
			zap.String("user_id", userID),
			zap.String("guild_id", guildID),
			zap.Error(err))
		return
	}
	positions := make(map[string]int, len(roles))
	for _, role := range roles {
		positions[role.ID] = role.Position
	}

	var grantable []string
	for _, roleID := range stored {
		pos, exists := positions[roleID]
		if exists && pos < botTop {
			grantable = append(grantable, roleID)
		}
	}
	if len(grantable) == 0 {
		return
	}

	if err := e.gw.AddRoles(guildID, userID, grantable, "Restoring roles after temporary ban"); err != nil {
		e.logger.Error("role restore failed",
			zap.String("user_id", userID),
			zap.String("guild_id", guildID),
			zap.Error(err))
		e.recordAudit(ctx, LevelWarn, guildID, userID, "restore_failed", err.Error())
		return
	}
	e.logger.Info("restored roles",
		zap.String("user_id", userID),
		zap.String("guild_id", guildID),
		zap.Strings("role_ids", grantable))
	e.recordAudit(ctx, LevelInfo, guildID, userID, "roles_restored", strings.Join(grantable, ","))
}

func (e *Engine) recordAudit(ctx context.Context, level, guildID, userID, event, details string) {
	if e.audit != nil {
		e.audit(ctx, level, guildID, userID, event, details)
	}
}

func formatDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return fmt.Sprintf("%d seconds", int(d/time.Second))
}
