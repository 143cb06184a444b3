package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/robfig/cron"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"slippidex/attributes"
	"slippidex/dal"
	"slippidex/directory"
	"slippidex/discordutils"
	"slippidex/lang"
	"slippidex/metrics"
	"slippidex/pacing"
	"slippidex/reconcile"
	"slippidex/roster"
	"slippidex/selection"
)

// guildTimeout bounds the work done for a single event.
const guildTimeout = 5 * time.Minute

type commandHandler = func(context.Context, *discordgo.InteractionCreate)

// Config holds everything the bot needs besides its Discord session.
type Config struct {
	GuildID    string
	DB         *gorm.DB
	Catalog    *roster.Catalog
	Assets     reconcile.Assets
	Pacer      *pacing.Pacer
	Store      selection.Store
	SessionTTL time.Duration
	Lang       *lang.Lang
	Metrics    *metrics.Metrics
	Log        *zap.SugaredLogger
	Schedule   string
}

// Bot represents an instance of the slippidex discord bot.
type Bot struct {
	Config

	session   *discordgo.Session
	rest      discordutils.Session
	botUserID string

	reconciler *reconcile.Reconciler
	publisher  *directory.Publisher
	mutator    *attributes.Mutator
	selections *selection.Controller

	registeredCommands []*discordgo.ApplicationCommand
	commandHandlers    map[string]commandHandler
	cron               *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a bot for the given token. It talks to Discord over REST
// straight away; the gateway is only opened by Start.
func New(token string, config Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "create discord session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	me, err := session.User("@me")
	if err != nil {
		return nil, errors.Wrap(err, "fetch bot user")
	}

	bot := newBot(config, session, me.ID)
	bot.session = session
	return bot, nil
}

// newBot wires the bot's components around a REST session.
func newBot(config Config, rest discordutils.Session, botUserID string) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	bot := &Bot{
		Config:    config,
		rest:      rest,
		botUserID: botUserID,
		ctx:       ctx,
		cancel:    cancel,
	}

	bot.reconciler = reconcile.New(reconcile.Config{
		Session:   rest,
		DB:        config.DB,
		Catalog:   config.Catalog,
		Assets:    config.Assets,
		Pacer:     config.Pacer,
		Lang:      config.Lang,
		Metrics:   config.Metrics,
		Log:       config.Log.Named("reconcile"),
		BotUserID: botUserID,
	})
	bot.publisher = directory.NewPublisher(directory.Config{
		Session:   rest,
		DB:        config.DB,
		Catalog:   config.Catalog,
		Pacer:     config.Pacer,
		Metrics:   config.Metrics,
		Log:       config.Log.Named("directory"),
		BotUserID: botUserID,
	})
	bot.mutator = attributes.New(attributes.Config{
		Session:   rest,
		DB:        config.DB,
		Catalog:   config.Catalog,
		Pacer:     config.Pacer,
		Publisher: bot.publisher,
		Metrics:   config.Metrics,
		Log:       config.Log.Named("attributes"),
	})
	bot.selections = selection.NewController(selection.Config{
		Catalog: config.Catalog,
		Store:   config.Store,
		Mutator: bot.mutator,
		TTL:     config.SessionTTL,
		Lang:    config.Lang,
		Metrics: config.Metrics,
		Log:     config.Log.Named("selection"),
	})

	bot.commandHandlers = map[string]commandHandler{
		cmdSetTag:     bot.SetTag,
		cmdSetMain:    bot.SetMain,
		cmdReconcile:  bot.Reconcile,
		cmdGetTagUser: bot.GetTag,
	}
	return bot
}

// Start adds the event handlers, opens the gateway, registers the commands
// and starts scheduled reconciliation.
func (bot *Bot) Start() error {
	bot.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		bot.Log.Infow("bot is up", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	bot.session.AddHandler(bot.onGuildCreate)
	bot.session.AddHandler(bot.onGuildDelete)
	bot.session.AddHandler(bot.onInteraction)
	bot.session.AddHandler(func(_ *discordgo.Session, r *discordgo.RateLimit) {
		bot.Log.Warnw("rate limited", "url", r.URL, "retry_after", r.RetryAfter, "message", r.Message)
	})

	if err := bot.session.Open(); err != nil {
		return errors.Wrap(err, "open session")
	}

	if err := bot.registerCommands(); err != nil {
		return err
	}

	if bot.Schedule != "" {
		bot.cron = cron.New()
		if err := bot.cron.AddFunc(bot.Schedule, bot.reconcileJoinedGuilds); err != nil {
			return errors.Wrapf(err, "bad reconcile schedule %q", bot.Schedule)
		}
		bot.cron.Start()
		bot.Log.Infow("scheduled reconciliation", "schedule", bot.Schedule)
	}
	return nil
}

func (bot *Bot) registerCommands() error {
	for _, command := range botCommands {
		newCommand, err := bot.session.ApplicationCommandCreate(
			bot.botUserID,
			bot.GuildID,
			command,
		)
		if err != nil {
			return errors.Wrapf(err, "create %v command", command.Name)
		}
		bot.registeredCommands = append(bot.registeredCommands, newCommand)
		bot.Log.Infow("created command", "command", command.Name)
	}
	return nil
}

// Shutdown shuts down the bot cleanly.
func (bot *Bot) Shutdown() {
	bot.Log.Info("shutting down")

	if bot.cron != nil {
		bot.cron.Stop()
	}
	bot.cancel()

	if bot.session == nil {
		return
	}

	for _, command := range bot.registeredCommands {
		err := bot.session.ApplicationCommandDelete(
			bot.botUserID,
			bot.GuildID,
			command.ID,
		)
		if err != nil {
			bot.Log.Warnw("failed to delete command", "command", command.Name, "error", err)
		} else {
			bot.Log.Infow("deleted command", "command", command.Name)
		}
	}

	if err := bot.session.Close(); err != nil {
		bot.Log.Warnw("failed to close session", "error", err)
	}
}

func (bot *Bot) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(bot.ctx, guildTimeout)
}

func (bot *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	ctx, cancel := bot.eventContext()
	defer cancel()

	if err := bot.SetupGuild(ctx, g.ID); err != nil {
		bot.Log.Errorw("guild setup failed", "guild", g.ID, "error", err)
	}
}

func (bot *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	// an outage, not a removal
	if g.Unavailable {
		return
	}

	ctx, cancel := bot.eventContext()
	defer cancel()

	if err := bot.RemoveGuild(ctx, g.ID); err != nil {
		bot.Log.Errorw("failed to forget guild", "guild", g.ID, "error", err)
	}
}

// SetupGuild bootstraps a guild: admin channel, badges and roles, then the
// directory. A failed reconciliation is reported to the guild's admins and
// does not stop the directory from being set up. Its error is returned once
// the directory is in place, unless it was a role hierarchy failure.
func (bot *Bot) SetupGuild(ctx context.Context, guildID string) error {
	if _, err := bot.reconciler.EnsureInfoChannel(ctx, guildID); err != nil {
		bot.Log.Errorw("failed to set up info channel", "guild", guildID, "error", err)
	}

	result, runErr := bot.reconciler.Run(ctx, guildID)
	switch {
	case errors.Is(runErr, reconcile.ErrHierarchy):
		runErr = nil
	case runErr != nil:
		bot.Log.Errorw("guild reconciliation failed", "guild", guildID, "error", runErr)
	}
	bot.Log.Infow("guild ready", "guild", guildID, "roles_valid", result.RolesValid)

	if _, err := bot.ensureDirectory(ctx, guildID); err != nil {
		return err
	}
	if err := bot.publisher.Publish(ctx, guildID); err != nil {
		return err
	}
	return runErr
}

// ensureDirectory creates the guild's directory if it has none and reports
// whether it did.
func (bot *Bot) ensureDirectory(ctx context.Context, guildID string) (bool, error) {
	guild, err := dal.GetGuild(ctx, guildID, bot.DB)
	if err != nil && !errors.Is(err, dal.ErrNotFound) {
		return false, err
	}
	if err == nil && guild.HasDirectory() {
		return false, nil
	}
	if err := bot.publisher.InitDirectoryChannel(ctx, guildID); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveGuild forgets a guild the bot was removed from.
func (bot *Bot) RemoveGuild(ctx context.Context, guildID string) error {
	err := dal.DeleteGuild(ctx, guildID, bot.DB)
	if errors.Is(err, dal.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	bot.Log.Infow("forgot guild", "guild", guildID)
	return nil
}
