package bot

import (
	"context"
	"time"

	"tess-spy/internal/apis"
	"tess-spy/internal/audit"
	"tess-spy/internal/birthday"
	"tess-spy/internal/config"
	"tess-spy/internal/dmsched"
	"tess-spy/internal/filter"
	"tess-spy/internal/storage"
	"tess-spy/internal/suspend"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	audit     *audit.Logger
	session   *discordgo.Session
	engine    *suspend.Engine
	words     *filter.Set
	dms       *dmsched.Scheduler
	birthdays *birthday.Service
	weather   *apis.WeatherClient
	jokes     *apis.JokeClient
	cats      *apis.CatClient
	startedAt time.Time
	cancelBG  context.CancelFunc
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent |
		discordgo.IntentsDirectMessages

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		session:   session,
		words:     filter.New(cfg.BannedWords),
		birthdays: birthday.NewService(store),
		weather:   apis.NewWeatherClient(cfg.WeatherAPIKey),
		jokes:     apis.NewJokeClient(),
		cats:      apis.NewCatClient(),
	}

	gateway := newDiscordGateway(session)
	b.engine = suspend.New(suspend.Config{
		Duration:             time.Duration(cfg.Suspension.DurationSeconds) * time.Second,
		SweepInterval:        time.Duration(cfg.Suspension.SweepSeconds) * time.Second,
		WaitingRoomGuildID:   cfg.Suspension.WaitingRoomGuildID,
		WaitingRoomChannelID: cfg.Suspension.WaitingRoomChannelID,
		BannedWords:          cfg.BannedWords,
	}, gateway, store.Snapshots(), store.Suspensions(), logger, auditLogger.Log)

	b.dms = dmsched.New(gateway.SendDM, logger)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancelBG = cancel
	go b.engine.Run(ctx)
	go b.dms.Run(ctx)

	b.startedAt = time.Now()
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.cancelBG != nil {
		b.cancelBG()
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()

	if term, ok := b.words.Match(msg.Content); ok {
		var roleIDs []string
		if msg.Member != nil {
			roleIDs = msg.Member.Roles
		}
		b.engine.OnViolation(ctx, suspend.Violation{
			GuildID:   msg.GuildID,
			ChannelID: msg.ChannelID,
			MessageID: msg.ID,
			UserID:    msg.Author.ID,
			RoleIDs:   roleIDs,
			Term:      term,
		})
		return
	}

	if b.loggingExcluded(ctx, msg.ChannelID) {
		return
	}
	attachments := make([]string, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		attachments = append(attachments, att.URL)
	}
	entry := storage.MessageLog{
		User:        msg.Author.Username,
		Message:     msg.Content,
		Time:        time.Now().UTC().Format(time.RFC3339),
		Attachments: attachments,
		Guild:       msg.GuildID,
		Channel:     msg.ChannelID,
	}
	if err := b.store.AddMessageLog(ctx, entry); err != nil {
		b.logger.Warn("message log write failed", zap.Error(err))
	}
}

func (b *Bot) onMessageUpdate(session *discordgo.Session, msg *discordgo.MessageUpdate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" || msg.Content == "" {
		return
	}

	ctx := context.Background()
	if b.loggingExcluded(ctx, msg.ChannelID) {
		return
	}

	oldContent := ""
	if msg.BeforeUpdate != nil {
		oldContent = msg.BeforeUpdate.Content
	}
	entry := storage.MessageLog{
		User:       msg.Author.Username,
		OldMessage: oldContent,
		NewMessage: msg.Content,
		Time:       time.Now().UTC().Format(time.RFC3339),
		Guild:      msg.GuildID,
		Channel:    msg.ChannelID,
	}
	if err := b.store.AddMessageLog(ctx, entry); err != nil {
		b.logger.Warn("message log write failed", zap.Error(err))
	}
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, member *discordgo.GuildMemberAdd) {
	if member.User == nil || member.User.Bot {
		return
	}
	b.engine.OnMemberJoin(context.Background(), member.GuildID, member.User.ID)
}

// loggingExcluded reports whether message logging is disabled for the
// channel. Lookup failures fail open so a storage hiccup does not stop
// the log trail silently growing holes.
func (b *Bot) loggingExcluded(ctx context.Context, channelID string) bool {
	channels, err := b.store.ListLoggingChannels(ctx)
	if err != nil {
		b.logger.Warn("logging channel lookup failed", zap.Error(err))
		return false
	}
	for _, id := range channels {
		if id == channelID {
			return true
		}
	}
	return false
}
