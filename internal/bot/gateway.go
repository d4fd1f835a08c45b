package bot

import (
	"errors"
	"fmt"
	"net/http"

	"tess-spy/internal/suspend"

	"github.com/bwmarrin/discordgo"
)

// discordGateway adapts a discordgo session to the calls the suspension
// engine makes, translating REST errors into the engine's sentinels.
type discordGateway struct {
	session *discordgo.Session
}

func newDiscordGateway(session *discordgo.Session) *discordGateway {
	return &discordGateway{session: session}
}

func (g *discordGateway) Ban(guildID, userID, reason string, deleteSeconds int) error {
	days := deleteSeconds / 86400
	return mapRESTError(g.session.GuildBanCreateWithReason(guildID, userID, reason, days))
}

func (g *discordGateway) Unban(guildID, userID, reason string) error {
	_ = reason
	return mapRESTError(g.session.GuildBanDelete(guildID, userID))
}

func (g *discordGateway) Kick(guildID, userID, reason string) error {
	return mapRESTError(g.session.GuildMemberDeleteWithReason(guildID, userID, reason))
}

func (g *discordGateway) DeleteMessage(channelID, messageID string) error {
	return mapRESTError(g.session.ChannelMessageDelete(channelID, messageID))
}

func (g *discordGateway) AddRoles(guildID, userID string, roleIDs []string, reason string) error {
	_ = reason
	for _, roleID := range roleIDs {
		if err := g.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
			return mapRESTError(err)
		}
	}
	return nil
}

func (g *discordGateway) GuildRoles(guildID string) ([]suspend.Role, int, error) {
	roles, err := g.session.GuildRoles(guildID)
	if err != nil {
		return nil, 0, mapRESTError(err)
	}
	positions := make(map[string]int, len(roles))
	out := make([]suspend.Role, 0, len(roles))
	for _, role := range roles {
		positions[role.ID] = role.Position
		out = append(out, suspend.Role{ID: role.ID, Position: role.Position})
	}

	botTop := 0
	member, err := g.session.State.Member(guildID, g.session.State.User.ID)
	if err != nil {
		member, err = g.session.GuildMember(guildID, g.session.State.User.ID)
		if err != nil {
			return nil, 0, mapRESTError(err)
		}
	}
	for _, roleID := range member.Roles {
		if pos, ok := positions[roleID]; ok && pos > botTop {
			botTop = pos
		}
	}
	return out, botTop, nil
}

// InviteChannel finds a text channel the bot can create invites in.
func (g *discordGateway) InviteChannel(guildID string) (string, error) {
	channels, err := g.session.GuildChannels(guildID)
	if err != nil {
		return "", mapRESTError(err)
	}
	botID := g.session.State.User.ID
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		perms, err := g.session.UserChannelPermissions(botID, channel.ID)
		if err != nil {
			continue
		}
		if perms&discordgo.PermissionCreateInstantInvite != 0 {
			return channel.ID, nil
		}
	}
	return "", fmt.Errorf("no channel available for invites in guild %s", guildID)
}

func (g *discordGateway) CreateInvite(channelID string, maxAgeSeconds, maxUses int, reason string) (string, error) {
	_ = reason
	invite, err := g.session.ChannelInviteCreate(channelID, discordgo.Invite{
		MaxAge:  maxAgeSeconds,
		MaxUses: maxUses,
	})
	if err != nil {
		return "", mapRESTError(err)
	}
	return "https://discord.gg/" + invite.Code, nil
}

func (g *discordGateway) SendDM(userID, message string) error {
	channel, err := g.session.UserChannelCreate(userID)
	if err != nil {
		return mapRESTError(err)
	}
	_, err = g.session.ChannelMessageSend(channel.ID, message)
	return mapRESTError(err)
}

func (g *discordGateway) SendChannelMessage(channelID, message string) error {
	_, err := g.session.ChannelMessageSend(channelID, message)
	return mapRESTError(err)
}

func (g *discordGateway) GuildName(guildID string) string {
	if guild, err := g.session.State.Guild(guildID); err == nil && guild.Name != "" {
		return guild.Name
	}
	if guild, err := g.session.Guild(guildID); err == nil {
		return guild.Name
	}
	return guildID
}

// mapRESTError folds discordgo REST failures into the engine's
// sentinels so callers can branch with errors.Is.
func mapRESTError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %s", suspend.ErrForbidden, restErr.Message.Message)
		case discordgo.ErrCodeUnknownBan, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser, discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return fmt.Errorf("%w: %s", suspend.ErrNotFound, restErr.Message.Message)
		}
	}
	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: status 403", suspend.ErrForbidden)
		case http.StatusNotFound:
			return fmt.Errorf("%w: status 404", suspend.ErrNotFound)
		}
	}
	return err
}
