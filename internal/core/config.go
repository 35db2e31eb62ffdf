package core

import (
	"time"
)

type Config struct {
	DB       DBConfig
	Library  LibraryConfig
	Server   ServerConfig
	Log      LogConfig
	Playback PlaybackConfig
}

type DBConfig struct {
	Path string
}

type LibraryConfig struct {
	Path           string
	Watch          bool
	RescanDebounce time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type PlaybackConfig struct {
	// PositionSaveInterval throttles podcast position writes from progress
	// ticks. Pause/stop/track-change saves are never throttled.
	PositionSaveInterval time.Duration
	// HistoryCap is the number of most-recent history rows kept.
	HistoryCap int
	// LastPlayedCap bounds the last-played artist/album lists.
	LastPlayedCap int
	// MediaButtonDelay is the debounce window for headset click sequences.
	MediaButtonDelay time.Duration
	// SkipJumpSmall and SkipJumpLarge back the replay/forward commands.
	SkipJumpSmall time.Duration
	SkipJumpLarge time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		DB: DBConfig{
			Path: "./jukeboxd.db",
		},
		Library: LibraryConfig{
			Path:           "./music",
			Watch:          true,
			RescanDebounce: 2 * time.Second,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Playback: PlaybackConfig{
			PositionSaveInterval: 10 * time.Second,
			HistoryCap:           100,
			LastPlayedCap:        10,
			MediaButtonDelay:     300 * time.Millisecond,
			SkipJumpSmall:        10 * time.Second,
			SkipJumpLarge:        30 * time.Second,
		},
	}
}
