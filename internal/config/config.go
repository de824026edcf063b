package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, read from a TOML file.
type Config struct {
	// APIURL is the base URL of the console backend.
	APIURL string `toml:"api_url"`
	// FeedURL is the websocket URL of the realtime event feed.
	FeedURL string `toml:"feed_url"`
	// DefaultFilter is the initial conversation-list status filter
	// (all, open, pending, unread, closed).
	DefaultFilter string `toml:"default_filter"`
	// LogPath is the log file location; empty logs to stderr only.
	LogPath string `toml:"log_path"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		APIURL:        "http://localhost:3000",
		FeedURL:       "ws://localhost:3000/events",
		DefaultFilter: "open",
	}
}

// Load reads config from the given path. Returns an error if the file is
// missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
