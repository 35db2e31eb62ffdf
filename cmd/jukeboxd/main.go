// Package main provides the jukeboxd daemon entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"jukeboxd/internal/core"
	"jukeboxd/internal/engine"
	httpserver "jukeboxd/internal/http"
	"jukeboxd/internal/input"
	"jukeboxd/internal/library"
	"jukeboxd/internal/lifecycle"
	"jukeboxd/internal/session"
	"jukeboxd/internal/store"
	"jukeboxd/internal/tracker"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jukeboxd",
	Short: "jukeboxd - headless music and podcast playback daemon",
	Long: `jukeboxd is a headless playback daemon that maintains a persistent playing
queue over a local music library, resumes podcasts where they were left off
and exposes playback control over HTTP.`,
	RunE: runJukeboxd,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")
	rootCmd.PersistentFlags().String("db-path", "./jukeboxd.db", "SQLite database path")
	rootCmd.PersistentFlags().String("library-path", "./music", "music library root directory")
	rootCmd.PersistentFlags().Bool("library-watch", true, "watch the library for changes")
	rootCmd.PersistentFlags().String("server-host", "0.0.0.0", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().Int("history-cap", 100, "Maximum listen history rows kept per kind")
	rootCmd.PersistentFlags().Int("last-played-cap", 10, "Maximum last-played rows kept per kind")
	rootCmd.PersistentFlags().Duration("position-save-interval", 10*time.Second, "Podcast position save throttle")
	rootCmd.PersistentFlags().Duration("media-button-delay", 300*time.Millisecond, "Media button click debounce window")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// Don't exit if .env file doesn't exist, just warn
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("JUKEBOXD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(&config.Log)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.DB.Path = viper.GetString("db-path")
	cfg.Library.Path = viper.GetString("library-path")
	cfg.Library.Watch = viper.GetBool("library-watch")
	if d := viper.GetDuration("library-rescan-debounce"); d > 0 {
		cfg.Library.RescanDebounce = d
	}

	cfg.Server.Host = viper.GetString("server-host")
	cfg.Server.Port = viper.GetInt("server-port")

	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")

	cfg.Playback.HistoryCap = viper.GetInt("history-cap")
	cfg.Playback.LastPlayedCap = viper.GetInt("last-played-cap")
	cfg.Playback.PositionSaveInterval = viper.GetDuration("position-save-interval")
	cfg.Playback.MediaButtonDelay = viper.GetDuration("media-button-delay")

	return cfg
}

func buildLogger(cfg *core.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runJukeboxd(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting jukeboxd",
		zap.String("db_path", config.DB.Path),
		zap.String("library_path", config.Library.Path))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	db, err := store.Open(config.DB.Path, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	stores := store.NewStores(db, logger.Named("store"))
	sorts := store.NewSortStore(db)
	history := store.NewHistoryStore(db, config.Playback.HistoryCap, config.Playback.LastPlayedCap, logger.Named("history"))

	favorites := store.NewFavoriteStore(db, logger.Named("favorites"))
	if err := favorites.Warm(ctx); err != nil {
		return fmt.Errorf("failed to warm favorite cache: %w", err)
	}

	repo := library.NewRepository(config.Library.Path, logger.Named("library"))
	if err := repo.Scan(ctx); err != nil {
		return fmt.Errorf("initial library scan failed: %w", err)
	}

	hub := lifecycle.NewHub(logger.Named("lifecycle"))
	defer hub.Close()

	controller := session.NewController(
		config.Playback,
		repo,
		sorts,
		favorites,
		stores,
		engine.NewClockEngine(logger.Named("engine")),
		hub,
		logger,
	)

	bridge := session.NewBridge(hub, controller, logger)
	defer bridge.Close()

	sideEffects := tracker.New(hub, history, favorites, logger.Named("tracker"))
	sideEffects.SetFavoriteListener(func(state core.FavoriteState) {
		logger.Debug("Favorite state resolved",
			zap.Int64("songID", state.SongID),
			zap.Bool("favorite", state.Favorite))
	})

	button := input.NewMediaButton(config.Playback.MediaButtonDelay, func(cmd input.ButtonCommand) {
		switch cmd {
		case input.CommandPlayPause:
			controller.TogglePlayPause()
		case input.CommandSkipNext:
			controller.SkipNext()
		case input.CommandSkipPrevious:
			controller.SkipPrevious()
		}
	}, logger)
	defer button.Close()

	httpServer := httpserver.NewServer(
		&config.Server,
		bridge,
		controller,
		button,
		repo,
		hub,
		logger,
	)
	httpServer.SetLibrarySize(repo.Size())

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return controller.Run(gCtx)
	})

	g.Go(func() error {
		return sideEffects.Run(gCtx)
	})

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	if config.Library.Watch {
		g.Go(func() error {
			return repo.Watch(gCtx, config.Library.RescanDebounce)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				httpServer.SetLibrarySize(repo.Size())
			}
		}
	})

	logger.Info("jukeboxd started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)),
		zap.Int("library_size", repo.Size()))

	if err := g.Wait(); err != nil {
		logger.Error("jukeboxd stopped with error", zap.Error(err))
		return err
	}

	logger.Info("jukeboxd stopped gracefully")
	return nil
}

func validateConfig() error {
	if config.DB.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if config.Library.Path == "" {
		return fmt.Errorf("library path is required")
	}

	if info, err := os.Stat(config.Library.Path); err != nil {
		return fmt.Errorf("library path is not accessible: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("library path is not a directory: %s", config.Library.Path)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	return nil
}
