package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"tess-spy/internal/audit"
	"tess-spy/internal/caption"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

const maxCaptionBytes = 8 << 20

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	switch interaction.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(session, interaction)
		return
	case discordgo.InteractionApplicationCommand:
	default:
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	options := optionMap(data.Options)

	switch data.Name {
	case "ping":
		latency := session.HeartbeatLatency().Round(time.Millisecond)
		b.respondText(session, interaction, fmt.Sprintf("🏓 Pong! Latency: %s", latency), false)
	case "owner":
		if b.isOwner(interaction) {
			b.respondText(session, interaction, "You are an owner of this bot.", true)
		} else {
			b.respondText(session, interaction, "You are not an owner of this bot.", true)
		}
	case "addrole":
		b.handleAddRole(ctx, session, interaction, options)
	case "clear":
		b.handleClear(ctx, session, interaction, options)
	case "dm":
		b.handleScheduleDM(session, interaction, options)
	case "cancel_dm":
		b.handleCancelDM(session, interaction)
	case "server_stats":
		b.handleServerStats(session, interaction)
	case "avatar":
		b.handleAvatar(session, interaction, options)
	case "user_info":
		b.handleUserInfo(session, interaction, options)
	case "uptime":
		b.handleUptime(session, interaction)
	case "joke":
		b.handleJoke(ctx, session, interaction)
	case "cat":
		b.handleCat(ctx, session, interaction)
	case "weather":
		b.handleWeather(ctx, session, interaction, options)
	case "birthday":
		b.handleBirthday(ctx, session, interaction, options)
	case "manage_logging_channels":
		b.handleLoggingChannels(ctx, session, interaction, options)
	case "read_logs":
		b.handleReadLogs(ctx, session, interaction, options)
	case "delete_all_logs":
		b.handleDeleteAllLogs(ctx, session, interaction)
	case "force_unban_all":
		b.handleForceUnbanAll(ctx, session, interaction)
	case "check_stored_roles":
		b.handleCheckStoredRoles(ctx, session, interaction, options)
	case "caption":
		b.handleCaption(session, interaction, data, options)
	}
}

func (b *Bot) handleAutocomplete(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()

	var partial string
	var focused string
	for _, opt := range data.Options {
		if opt.Focused {
			focused = opt.Name
			partial = strings.ToLower(opt.StringValue())
		}
	}

	var candidates []string
	switch {
	case data.Name == "weather" && focused == "city":
		candidates = b.cfg.Cities
	case data.Name == "birthday" && focused == "name":
		if names, err := b.store.ListBirthdays(context.Background()); err == nil {
			for name := range names {
				candidates = append(candidates, name)
			}
			sort.Strings(candidates)
		}
	default:
		return
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, 25)
	for _, candidate := range candidates {
		if partial != "" && !strings.Contains(strings.ToLower(candidate), partial) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: candidate, Value: candidate})
		if len(choices) == 25 {
			break
		}
	}

	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}

func (b *Bot) handleAddRole(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	if !b.requireOwner(session, interaction) {
		return
	}
	user := options.user(session, "user")
	role := options.role(session, interaction.GuildID, "role")
	if user == nil || role == nil {
		b.respondText(session, interaction, "User and role are required.", true)
		return
	}
	if err := session.GuildMemberRoleAdd(interaction.GuildID, user.ID, role.ID); err != nil {
		b.logger.Warn("role add failed", zap.String("role_id", role.ID), zap.Error(err))
		b.respondEmbed(session, interaction, b.embed("Add Role", "I don't have permission to give that role.", b.cfg.Embeds.Error), true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, user.ID, "role_added", "role "+role.Name+" given via command")
	b.respondEmbed(session, interaction, b.embed("Add Role", fmt.Sprintf("Gave %s to <@%s>.", role.Name, user.ID), b.cfg.Embeds.Success), false)
}

func (b *Bot) handleClear(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	if !b.requireOwner(session, interaction) {
		return
	}
	amount := int(options.integer("amount"))
	if amount < 1 {
		amount = 1
	}
	if amount > 100 {
		amount = 100
	}

	messages, err := session.ChannelMessages(interaction.ChannelID, amount, "", "", "")
	if err != nil {
		b.respondEmbed(session, interaction, b.embed("Clear", "Failed to fetch messages.", b.cfg.Embeds.Error), true)
		return
	}
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.ID)
	}
	if err := session.ChannelMessagesBulkDelete(interaction.ChannelID, ids); err != nil {
		b.respondEmbed(session, interaction, b.embed("Clear", "I don't have permission to delete messages here.", b.cfg.Embeds.Error), true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, b.callerID(interaction), "messages_cleared", fmt.Sprintf("%d messages deleted", len(ids)))
	b.respondEmbed(session, interaction, b.embed("Clear", fmt.Sprintf("Deleted %d messages.", len(ids)), b.cfg.Embeds.Success), true)
}

func (b *Bot) handleScheduleDM(session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	if !b.requireOwner(session, interaction) {
		return
	}
	user := options.user(session, "user")
	message := options.str("message")
	minutes := options.integer("minutes")
	if user == nil || message == "" || minutes < 0 {
		b.respondText(session, interaction, "User, message, and a non-negative delay are required.", true)
		return
	}

	replacedUser, replaced := b.dms.Schedule(user.ID, message, time.Duration(minutes)*time.Minute)
	desc := fmt.Sprintf("Message to <@%s> scheduled in %d minutes.", user.ID, minutes)
	if minutes == 0 {
		desc = fmt.Sprintf("Message to <@%s> will be delivered shortly.", user.ID)
	}
	if replaced {
		desc += fmt.Sprintf(" The pending message to <@%s> was replaced.", replacedUser)
	}
	b.respondEmbed(session, interaction, b.embed("Scheduled DM", desc, b.cfg.Embeds.Success), true)
}

func (b *Bot) handleCancelDM(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.requireOwner(session, interaction) {
		return
	}
	userID, ok := b.dms.Cancel()
	if !ok {
		b.respondEmbed(session, interaction, b.embed("Scheduled DM", "There is no pending message.", b.cfg.Embeds.Error), true)
		return
	}
	b.respondEmbed(session, interaction, b.embed("Scheduled DM", fmt.Sprintf("Cancelled the pending message to <@%s>.", userID), b.cfg.Embeds.Success), true)
}

func (b *Bot) handleServerStats(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guild, err := session.State.Guild(interaction.GuildID)
	if err != nil {
		guild, err = session.Guild(interaction.GuildID)
		if err != nil {
			b.respondEmbed(session, interaction, b.embed("Server Stats", "This command only works in a server.", b.cfg.Embeds.Error), true)
			return
		}
	}

	created, _ := discordgo.SnowflakeTimestamp(guild.ID)
	fields := []*discordgo.MessageEmbedField{
		{Name: "Members", Value: fmt.Sprintf("%d", guild.MemberCount), Inline: true},
		{Name: "Channels", Value: fmt.Sprintf("%d", len(guild.Channels)), Inline: true},
		{Name: "Roles", Value: fmt.Sprintf("%d", len(guild.Roles)), Inline: true},
		{Name: "Created", Value: created.Format("02-01-2006"), Inline: true},
		{Name: "Owner", Value: "<@" + guild.OwnerID + ">", Inline: true},
	}
	embed := b.embed(guild.Name, "Server statistics", b.cfg.Embeds.Info)
	embed.Fields = fields
	if guild.Icon != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: guild.IconURL("256")}
	}
	b.respondEmbed(session, interaction, embed, false)
}

func (b *Bot) handleAvatar(session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	user := options.user(session, "user")
	if user == nil {
		user = b.caller(interaction)
	}
	if user == nil {
		b.respondText(session, interaction, "Could not resolve the user.", true)
		return
	}
	embed := b.embed(user.Username, "", b.cfg.Embeds.Info)
	embed.Image = &discordgo.MessageEmbedImage{URL: user.AvatarURL("512")}
	b.respondEmbed(session, interaction, embed, false)
}

func (b *Bot) handleUserInfo(session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	user := options.user(session, "user")
	if user == nil {
		user = b.caller(interaction)
	}
	if user == nil {
		b.respondText(session, interaction, "Could not resolve the user.", true)
		return
	}

	created, _ := discordgo.SnowflakeTimestamp(user.ID)
	fields := []*discordgo.MessageEmbedField{
		{Name: "ID", Value: user.ID, Inline: true},
		{Name: "Created", Value: created.Format("02-01-2006"), Inline: true},
	}
	if member, err := session.GuildMember(interaction.GuildID, user.ID); err == nil {
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Joined", Value: member.JoinedAt.Format("02-01-2006"), Inline: true},
			&discordgo.MessageEmbedField{Name: "Roles", Value: fmt.Sprintf("%d", len(member.Roles)), Inline: true},
		)
	}
	embed := b.embed(user.Username, "User information", b.cfg.Embeds.Info)
	embed.Fields = fields
	embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("256")}
	b.respondEmbed(session, interaction, embed, false)
}

func (b *Bot) handleUptime(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Bot uptime", Value: time.Since(b.startedAt).Round(time.Second).String(), Inline: true},
	}
	if hostUptime, err := host.Uptime(); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Host uptime", Value: (time.Duration(hostUptime) * time.Second).String(), Inline: true,
		})
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "CPU", Value: fmt.Sprintf("%.1f%%", percents[0]), Inline: true,
		})
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Memory", Value: fmt.Sprintf("%.1f%%", vm.UsedPercent), Inline: true,
		})
	}
	embed := b.embed("Uptime", "", b.cfg.Embeds.Info)
	embed.Fields = fields
	b.respondEmbed(session, interaction, embed, false)
}

func (b *Bot) handleJoke(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	b.deferResponse(session, interaction, false)
	joke, err := b.jokes.Random(ctx)
	if err != nil {
		b.followUpText(session, interaction, "Could not fetch a joke right now.")
		return
	}
	b.followUpText(session, interaction, joke.Setup+"\n\n||"+joke.Punchline+"||")
}

func (b *Bot) handleCat(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	b.deferResponse(session, interaction, false)
	url, err := b.cats.RandomHat(ctx)
	if err != nil {
		b.followUpText(session, interaction, "Could not fetch a cat right now.")
		return
	}
	embed := b.embed("🐱", "", b.cfg.Embeds.Info)
	embed.Image = &discordgo.MessageEmbedImage{URL: url}
	b.followUpEmbed(session, interaction, embed)
}

func (b *Bot) handleWeather(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	city := options.str("city")
	if city == "" {
		b.respondText(session, interaction, "A city is required.", true)
		return
	}
	if b.cfg.WeatherAPIKey == "" {
		b.respondText(session, interaction, "The weather service is not configured.", true)
		return
	}
	b.deferResponse(session, interaction, false)

	if options.str("day") == "tomorrow" {
		forecast, err := b.weather.Tomorrow(ctx, city, time.Now())
		if err != nil {
			b.logger.Warn("forecast lookup failed", zap.String("city", city), zap.Error(err))
			b.followUpText(session, interaction, "Could not fetch the forecast for "+city+".")
			return
		}
		embed := b.embed("Weather in "+forecast.City+" tomorrow", forecast.Description, b.cfg.Embeds.Info)
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Temperature", Value: fmt.Sprintf("%.1f°C", forecast.TempC), Inline: true},
		}
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: forecast.IconURL}
		b.followUpEmbed(session, interaction, embed)
		return
	}

	weather, err := b.weather.Current(ctx, city)
	if err != nil {
		b.logger.Warn("weather lookup failed", zap.String("city", city), zap.Error(err))
		b.followUpText(session, interaction, "Could not fetch the weather for "+city+".")
		return
	}
	embed := b.embed("Weather in "+weather.City, weather.Description, b.cfg.Embeds.Info)
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Temperature", Value: fmt.Sprintf("%.1f°C", weather.TempC), Inline: true},
		{Name: "Feels like", Value: fmt.Sprintf("%.1f°C", weather.FeelsLikeC), Inline: true},
		{Name: "Humidity", Value: fmt.Sprintf("%d%%", weather.Humidity), Inline: true},
		{Name: "Wind", Value: fmt.Sprintf("%.1f m/s", weather.WindSpeed), Inline: true},
	}
	embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: weather.IconURL}
	b.followUpEmbed(session, interaction, embed)
}

func (b *Bot) handleBirthday(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	action := options.str("action")
	name := options.str("name")
	if name == "" {
		if caller := b.caller(interaction); caller != nil {
			name = caller.Username
		}
	}

	switch action {
	case "add":
		date := options.str("date")
		if date == "" {
			b.respondText(session, interaction, "A date is required, for example 25-12-1990.", true)
			return
		}
		normalized, err := b.birthdays.Add(ctx, name, date)
		if err != nil {
			b.respondEmbed(session, interaction, b.embed("Birthday", "I could not understand that date. Try 25-12-1990.", b.cfg.Embeds.Error), true)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Birthday", fmt.Sprintf("Saved %s's birthday as %s.", name, normalized), b.cfg.Embeds.Success), false)
	case "remove":
		if err := b.birthdays.Delete(ctx, name); err != nil {
			b.respondEmbed(session, interaction, b.embed("Birthday", "Failed to remove the birthday.", b.cfg.Embeds.Error), true)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Birthday", fmt.Sprintf("Removed %s's birthday.", name), b.cfg.Embeds.Success), false)
	case "get":
		date, found, err := b.birthdays.Get(ctx, name)
		if err != nil || !found {
			b.respondEmbed(session, interaction, b.embed("Birthday", fmt.Sprintf("No birthday stored for %s.", name), b.cfg.Embeds.Error), true)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Birthday", fmt.Sprintf("%s's birthday is %s.", name, date), b.cfg.Embeds.Info), false)
	case "days":
		days, found, err := b.birthdays.DaysUntil(ctx, name, time.Now())
		if err != nil || !found {
			b.respondEmbed(session, interaction, b.embed("Birthday", fmt.Sprintf("No birthday stored for %s.", name), b.cfg.Embeds.Error), true)
			return
		}
		if days == 0 {
			b.respondEmbed(session, interaction, b.embed("Birthday", fmt.Sprintf("🎂 It's %s's birthday today!", name), b.cfg.Embeds.Success), false)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Birthday", fmt.Sprintf("%d days until %s's birthday.", days, name), b.cfg.Embeds.Info), false)
	case "list":
		all, err := b.birthdays.List(ctx)
		if err != nil {
			b.respondEmbed(session, interaction, b.embed("Birthday", "Failed to list birthdays.", b.cfg.Embeds.Error), true)
			return
		}
		if len(all) == 0 {
			b.respondEmbed(session, interaction, b.embed("Birthday", "No birthdays stored yet.", b.cfg.Embeds.Info), true)
			return
		}
		names := make([]string, 0, len(all))
		for stored := range all {
			names = append(names, stored)
		}
		sort.Strings(names)
		lines := make([]string, 0, len(names))
		for _, stored := range names {
			lines = append(lines, fmt.Sprintf("%s: %s", stored, all[stored]))
		}
		b.respondEmbed(session, interaction, b.embed("Birthdays", strings.Join(lines, "\n"), b.cfg.Embeds.Info), false)
	default:
		b.respondText(session, interaction, "Unknown action.", true)
	}
}

func (b *Bot) handleLoggingChannels(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	if !b.requireOwner(session, interaction) {
		return
	}
	action := options.str("action")

	if action == "list" {
		channels, err := b.store.ListLoggingChannels(ctx)
		if err != nil {
			b.respondEmbed(session, interaction, b.embed("Logging Channels", "Failed to list excluded channels.", b.cfg.Embeds.Error), true)
			return
		}
		if len(channels) == 0 {
			b.respondEmbed(session, interaction, b.embed("Logging Channels", "No channels are excluded from logging.", b.cfg.Embeds.Info), true)
			return
		}
		lines := make([]string, 0, len(channels))
		for _, id := range channels {
			lines = append(lines, "<#"+id+">")
		}
		b.respondEmbed(session, interaction, b.embed("Logging Channels", strings.Join(lines, "\n"), b.cfg.Embeds.Info), true)
		return
	}

	channel := options.channel(session, "channel")
	if channel == nil {
		b.respondText(session, interaction, "A channel is required.", true)
		return
	}

	switch action {
	case "add":
		if err := b.store.AddLoggingChannel(ctx, channel.ID); err != nil {
			b.respondEmbed(session, interaction, b.embed("Logging Channels", "Failed to update the exclusion list.", b.cfg.Embeds.Error), true)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Logging Channels", "<#"+channel.ID+"> is now excluded from logging.", b.cfg.Embeds.Success), true)
	case "remove":
		if err := b.store.RemoveLoggingChannel(ctx, channel.ID); err != nil {
			b.respondEmbed(session, interaction, b.embed("Logging Channels", "Failed to update the exclusion list.", b.cfg.Embeds.Error), true)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Logging Channels", "<#"+channel.ID+"> is logged again.", b.cfg.Embeds.Success), true)
	default:
		b.respondText(session, interaction, "Unknown action.", true)
	}
}

func (b *Bot) handleReadLogs(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	if !b.requireOwner(session, interaction) {
		return
	}
	limit := int(options.integer("limit"))
	if limit < 1 {
		limit = 10
	}
	if limit > 25 {
		limit = 25
	}

	logs, err := b.store.ListMessageLogs(ctx, limit)
	if err != nil {
		b.respondEmbed(session, interaction, b.embed("Message Logs", "Failed to read the logs.", b.cfg.Embeds.Error), true)
		return
	}
	if len(logs) == 0 {
		b.respondEmbed(session, interaction, b.embed("Message Logs", "No message logs stored.", b.cfg.Embeds.Info), true)
		return
	}

	lines := make([]string, 0, len(logs))
	for _, entry := range logs {
		switch {
		case entry.NewMessage != "":
			lines = append(lines, fmt.Sprintf("[%s] %s edited in <#%s>: %q → %q", entry.Time, entry.User, entry.Channel, entry.OldMessage, entry.NewMessage))
		default:
			line := fmt.Sprintf("[%s] %s in <#%s>: %s", entry.Time, entry.User, entry.Channel, entry.Message)
			if len(entry.Attachments) > 0 {
				line += fmt.Sprintf(" (+%d attachments)", len(entry.Attachments))
			}
			lines = append(lines, line)
		}
	}
	b.respondEmbed(session, interaction, b.embed("Message Logs", strings.Join(lines, "\n"), b.cfg.Embeds.Info), true)
}

func (b *Bot) handleDeleteAllLogs(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.requireOwner(session, interaction) {
		return
	}
	if err := b.store.DeleteAllMessageLogs(ctx); err != nil {
		b.respondEmbed(session, interaction, b.embed("Message Logs", "Failed to delete the logs.", b.cfg.Embeds.Error), true)
		return
	}
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, b.callerID(interaction), "logs_deleted", "all message logs deleted")
	b.respondEmbed(session, interaction, b.embed("Message Logs", "All message logs deleted.", b.cfg.Embeds.Success), true)
}

func (b *Bot) handleForceUnbanAll(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.requireOwner(session, interaction) {
		return
	}
	b.deferResponse(session, interaction, true)

	bans, err := session.GuildBans(interaction.GuildID, 1000, "", "")
	if err != nil {
		b.followUpText(session, interaction, "Failed to list bans.")
		return
	}

	unbanned := 0
	for _, ban := range bans {
		if ban.User == nil {
			continue
		}
		if err := session.GuildBanDelete(interaction.GuildID, ban.User.ID); err != nil {
			b.logger.Warn("unban failed", zap.String("user_id", ban.User.ID), zap.Error(err))
			continue
		}
		_ = b.store.Suspensions().Remove(ctx, ban.User.ID)
		unbanned++
	}
	b.audit.Log(ctx, audit.LevelWarn, interaction.GuildID, b.callerID(interaction), "force_unban_all", fmt.Sprintf("%d users unbanned", unbanned))
	b.followUpText(session, interaction, fmt.Sprintf("Unbanned %d users.", unbanned))
}

func (b *Bot) handleCheckStoredRoles(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options optionIndex) {
	if !b.requireOwner(session, interaction) {
		return
	}
	user := options.user(session, "user")
	if user == nil {
		b.respondText(session, interaction, "A user is required.", true)
		return
	}

	snapshots, err := b.store.ListRoleSnapshots(ctx, user.ID)
	if err != nil {
		b.respondEmbed(session, interaction, b.embed("Stored Roles", "Failed to read the snapshots.", b.cfg.Embeds.Error), true)
		return
	}
	if len(snapshots) == 0 {
		b.respondEmbed(session, interaction, b.embed("Stored Roles", fmt.Sprintf("No role snapshots stored for <@%s>.", user.ID), b.cfg.Embeds.Info), true)
		return
	}

	lines := make([]string, 0, len(snapshots))
	for guildID, roleIDs := range snapshots {
		mentions := make([]string, 0, len(roleIDs))
		for _, roleID := range roleIDs {
			mentions = append(mentions, "<@&"+roleID+">")
		}
		lines = append(lines, fmt.Sprintf("Guild %s: %s", guildID, strings.Join(mentions, ", ")))
	}
	sort.Strings(lines)
	b.respondEmbed(session, interaction, b.embed("Stored Roles", strings.Join(lines, "\n"), b.cfg.Embeds.Info), true)
}

func (b *Bot) handleCaption(session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, options optionIndex) {
	text := options.str("text")
	var attachment *discordgo.MessageAttachment
	for _, opt := range data.Options {
		if opt.Name == "image" && opt.Type == discordgo.ApplicationCommandOptionAttachment {
			if data.Resolved != nil {
				attachment = data.Resolved.Attachments[opt.Value.(string)]
			}
		}
	}
	if attachment == nil || text == "" {
		b.respondText(session, interaction, "An image and caption text are required.", true)
		return
	}
	if attachment.Size > maxCaptionBytes {
		b.respondText(session, interaction, "That file is too large to caption.", true)
		return
	}

	b.deferResponse(session, interaction, false)

	payload, err := downloadAttachment(attachment.URL)
	if err != nil {
		b.logger.Warn("attachment download failed", zap.String("url", attachment.URL), zap.Error(err))
		b.followUpText(session, interaction, "Failed to download the image.")
		return
	}
	rendered, ext, err := caption.Render(payload, text)
	if err != nil {
		b.followUpText(session, interaction, "That file does not look like an image I can caption.")
		return
	}

	_, err = session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Files: []*discordgo.File{{Name: "caption." + ext, Reader: bytes.NewReader(rendered)}},
	})
	if err != nil {
		b.logger.Warn("caption upload failed", zap.Error(err))
	}
}

func downloadAttachment(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxCaptionBytes))
}

// requireOwner responds with a refusal and returns false when the caller
// is not an owner.
func (b *Bot) requireOwner(session *discordgo.Session, interaction *discordgo.InteractionCreate) bool {
	if b.isOwner(interaction) {
		return true
	}
	b.respondEmbed(session, interaction, b.embed("Permission", "You are not allowed to use this command.", b.cfg.Embeds.Error), true)
	return false
}

func (b *Bot) isOwner(interaction *discordgo.InteractionCreate) bool {
	caller := b.caller(interaction)
	if caller == nil {
		return false
	}
	for _, id := range b.cfg.OwnerIDs {
		if id == caller.ID {
			return true
		}
	}
	if interaction.GuildID != "" {
		if guild, err := b.session.State.Guild(interaction.GuildID); err == nil && guild.OwnerID == caller.ID {
			return true
		}
	}
	return false
}

func (b *Bot) caller(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func (b *Bot) callerID(interaction *discordgo.InteractionCreate) string {
	if caller := b.caller(interaction); caller != nil {
		return caller.ID
	}
	return ""
}

func (b *Bot) embed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) respondText(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) deferResponse(session *discordgo.Session, interaction *discordgo.InteractionCreate, ephemeral bool) {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
}

func (b *Bot) followUpText(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	if _, err := session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{Content: content}); err != nil {
		b.logger.Warn("follow-up failed", zap.Error(err))
	}
}

func (b *Bot) followUpEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if _, err := session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		b.logger.Warn("follow-up failed", zap.Error(err))
	}
}

// optionIndex gives name-based access to a command's options.
type optionIndex map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) optionIndex {
	index := make(optionIndex, len(options))
	for _, opt := range options {
		index[opt.Name] = opt
	}
	return index
}

func (o optionIndex) str(name string) string {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionString {
		return opt.StringValue()
	}
	return ""
}

func (o optionIndex) integer(name string) int64 {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionInteger {
		return opt.IntValue()
	}
	return 0
}

func (o optionIndex) user(session *discordgo.Session, name string) *discordgo.User {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionUser {
		return opt.UserValue(session)
	}
	return nil
}

func (o optionIndex) role(session *discordgo.Session, guildID, name string) *discordgo.Role {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionRole {
		return opt.RoleValue(session, guildID)
	}
	return nil
}

func (o optionIndex) channel(session *discordgo.Session, name string) *discordgo.Channel {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionChannel {
		return opt.ChannelValue(session)
	}
	return nil
}
