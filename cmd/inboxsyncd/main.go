package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tmarqs/inboxsync/internal/app"
	"github.com/tmarqs/inboxsync/internal/config"
	"go.uber.org/fx"
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".inboxsync", "config.toml")
}

func main() {
	configFlag := flag.String("config", "", "config file path (default ~/.inboxsync/config.toml)")
	apiFlag := flag.String("api-url", "", "console backend base URL (overrides config)")
	feedFlag := flag.String("feed-url", "", "realtime feed websocket URL (overrides config)")
	flag.Parse()

	path := *configFlag
	if path == "" {
		path = defaultConfigPath()
	}

	cfg := config.Default()
	if path != "" {
		if loaded, err := config.Load(path); err == nil {
			cfg = loaded
		} else if *configFlag != "" {
			// An explicitly given config file must exist.
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if *apiFlag != "" {
		cfg.APIURL = *apiFlag
	}
	if *feedFlag != "" {
		cfg.FeedURL = *feedFlag
	}

	fx.New(app.Module(cfg)).Run()
}
