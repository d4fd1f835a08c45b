package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Check the bot's latency",
		},
		{
			Name:        "owner",
			Description: "Check whether you are registered as a bot owner",
		},
		{
			Name:        "addrole",
			Description: "Give a role to a member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to receive the role",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to give",
					Required:    true,
				},
			},
		},
		{
			Name:        "clear",
			Description: "Delete recent messages in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Number of messages to delete (1-100)",
					Required:    true,
				},
			},
		},
		{
			Name:        "dm",
			Description: "Schedule a direct message",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Recipient",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Message to send",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "Delay in minutes (0 sends right away)",
					Required:    true,
				},
			},
		},
		{
			Name:        "cancel_dm",
			Description: "Cancel the pending scheduled direct message",
		},
		{
			Name:        "server_stats",
			Description: "Show statistics about this server",
		},
		{
			Name:        "avatar",
			Description: "Show a user's avatar",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to look up (defaults to you)",
					Required:    false,
				},
			},
		},
		{
			Name:        "user_info",
			Description: "Show information about a user",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to look up (defaults to you)",
					Required:    false,
				},
			},
		},
		{
			Name:        "uptime",
			Description: "Show bot uptime and host statistics",
		},
		{
			Name:        "joke",
			Description: "Tell a random joke",
		},
		{
			Name:        "cat",
			Description: "Post a random cat wearing a hat",
		},
		{
			Name:        "weather",
			Description: "Show the weather for a city",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "city",
					Description:  "City name",
					Required:     true,
					Autocomplete: true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "day",
					Description: "today or tomorrow",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "today", Value: "today"},
						{Name: "tomorrow", Value: "tomorrow"},
					},
				},
			},
		},
		{
			Name:        "birthday",
			Description: "Manage stored birthdays",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "What to do",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "get", Value: "get"},
						{Name: "list", Value: "list"},
						{Name: "days", Value: "days"},
					},
				},
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "name",
					Description:  "Whose birthday",
					Required:     false,
					Autocomplete: true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "date",
					Description: "Birthdate, for example 25-12-1990",
					Required:    false,
				},
			},
		},
		{
			Name:        "manage_logging_channels",
			Description: "Exclude or include channels in message logging",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to exclude or include",
					Required:    false,
				},
			},
		},
		{
			Name:        "read_logs",
			Description: "Show the most recent message logs",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "How many entries to show (default 10)",
					Required:    false,
				},
			},
		},
		{
			Name:        "delete_all_logs",
			Description: "Delete all stored message logs",
		},
		{
			Name:        "force_unban_all",
			Description: "Lift every ban in this server",
		},
		{
			Name:        "check_stored_roles",
			Description: "Show the role snapshots stored for a user",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to inspect",
					Required:    true,
				},
			},
		},
		{
			Name:        "caption",
			Description: "Add a caption to an image or GIF",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "image",
					Description: "Image or GIF to caption",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "Caption text",
					Required:    true,
				},
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	return nil
}
