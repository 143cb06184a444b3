package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slippidex/bot"
	"slippidex/config"
	"slippidex/dal"
	"slippidex/directory"
	"slippidex/lang"
	"slippidex/logging"
	"slippidex/metrics"
	"slippidex/pacing"
	"slippidex/reconcile"
	"slippidex/roster"
	"slippidex/selection"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every command needs before it can do anything useful.
type app struct {
	cfg    config.Config
	zap    *zap.Logger
	log    *zap.SugaredLogger
	db     *gorm.DB
	lang   *lang.Lang
	met    *metrics.Metrics
	pacer  *pacing.Pacer
	roster *roster.Catalog
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "slippidex",
		Short: "Discord bot keeping a directory of Slippi tags and mains",
		Long: `slippidex keeps each server's character emojis and roles in line with
the Melee roster, lets members set their Slippi tag and main characters,
and maintains a pinned directory of everyone's tags and mains.

Settings come from config.yaml, SLIPPIDEX_* environment variables and flags.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), v, configFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file path. Defaults to ./config.yaml or /etc/slippidex/config.yaml.")
	flags.String("token", "", "Bot access token. (env: SLIPPIDEX_TOKEN)")
	flags.String("guild", "", "Guild ID. For the bot, registers slash commands in this guild only.")
	flags.String("db-path", "slippidex.db", "SQLite database file path.")
	flags.String("assets-dir", "assets/characters", "Directory holding one icon per character.")
	flags.String("log-level", "info", "Log level.")
	flags.String("metrics-addr", "", "Address to serve /metrics on. Disabled when empty.")

	for key, flag := range map[string]string{
		"token":        "token",
		"guild":        "guild",
		"db_path":      "db-path",
		"assets_dir":   "assets-dir",
		"log.level":    "log-level",
		"metrics.addr": "metrics-addr",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(newReconcileCmd(v, &configFile))
	rootCmd.AddCommand(newDirectoryCmd(v, &configFile))
	return rootCmd
}

func newReconcileCmd(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile one guild's emojis, roles and directory, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v, *configFile, true)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Guild == "" {
				return errors.New("--guild must be provided")
			}

			b, err := bot.New(a.cfg.Token, a.botConfig(selection.NewMemoryStore()))
			if err != nil {
				return err
			}
			defer b.Shutdown()

			if err := b.SetupGuild(cmd.Context(), a.cfg.Guild); err != nil {
				return err
			}

			guild, err := dal.GetGuild(cmd.Context(), a.cfg.Guild, a.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "guild %v reconciled, role hierarchy valid: %v\n", guild.GuildID, guild.RolesValid)
			return nil
		},
	}
}

func newDirectoryCmd(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "directory",
		Short: "Print one guild's directory as it would be published",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v, *configFile, false)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Guild == "" {
				return errors.New("--guild must be provided")
			}

			records, err := dal.ListMembers(cmd.Context(), a.cfg.Guild, a.db)
			if err != nil {
				return err
			}

			badges := roster.NewIndex(a.roster, nil)
			if a.cfg.Token != "" {
				session, err := discordgo.New("Bot " + a.cfg.Token)
				if err != nil {
					return errors.Wrap(err, "create discord session")
				}
				badges, err = reconcile.FetchBadgeIndex(cmd.Context(), session, a.roster, a.cfg.Guild)
				if err != nil {
					a.log.Warnw("printing directory without badges", "error", err)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), directory.Render(records, badges))
			return nil
		},
	}
}

func setup(v *viper.Viper, configFile string, requireToken bool) (*app, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(requireToken); err != nil {
		return nil, err
	}

	zapLogger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	gormLogger := logging.NewGormLogger(logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	}, zapLogger.Named("gorm"))

	db, err := dal.InitDB(cfg.DBPath, gormLogger)
	if err != nil {
		return nil, err
	}
	zapLogger.Info("connected to database", zap.String("path", cfg.DBPath))

	l, err := lang.New()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		zap:    zapLogger,
		log:    zapLogger.Sugar(),
		db:     db,
		lang:   l,
		met:    metrics.New(),
		pacer:  pacing.New(cfg.Pacing.Interval, cfg.Pacing.Burst),
		roster: roster.Default(),
	}, nil
}

func (a *app) botConfig(store selection.Store) bot.Config {
	return bot.Config{
		GuildID:    a.cfg.Guild,
		DB:         a.db,
		Catalog:    a.roster,
		Assets:     reconcile.Assets{Dir: a.cfg.AssetsDir},
		Pacer:      a.pacer,
		Store:      store,
		SessionTTL: a.cfg.Session.TTL,
		Lang:       a.lang,
		Metrics:    a.met,
		Log:        a.log,
		Schedule:   a.cfg.Reconcile.Schedule,
	}
}

func (a *app) sessionStore(ctx context.Context) (selection.Store, func(), error) {
	if a.cfg.Session.Store != config.StoreRedis {
		return selection.NewMemoryStore(), func() {}, nil
	}

	store, err := selection.NewRedisStore(ctx, a.cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	a.log.Infow("sharing selection sessions through redis")
	return store, func() {
		if err := store.Close(); err != nil {
			a.log.Warnw("failed to close redis", "error", err)
		}
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.zap.Sync()
}

func runBot(ctx context.Context, v *viper.Viper, configFile string) error {
	a, err := setup(v, configFile, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := a.sessionStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	metricsServer := metrics.Serve(a.cfg.Metrics.Addr, a.met, a.log.Named("metrics"))

	b, err := bot.New(a.cfg.Token, a.botConfig(store))
	if err != nil {
		return err
	}
	if err := b.Start(); err != nil {
		b.Shutdown()
		return err
	}

	<-ctx.Done()

	b.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		a.log.Warnw("failed to stop metrics server", "error", err)
	}
	return nil
}
