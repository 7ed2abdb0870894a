package config

import (
	"fmt"
	"os"
	"path/filepath"

	"newsdesk/relations"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// Mirror tunes the feed mirror worker.
type Mirror struct {
	// AggregatorURL is the news aggregator API base URL.
	AggregatorURL string `toml:"aggregator_url"`
	// StoriesLimit is how many of the newest stories each sync pass mirrors.
	StoriesLimit int `toml:"stories_limit"`
	// IntervalMinSeconds/IntervalMaxSeconds bound the randomized sleep
	// between sync passes.
	IntervalMinSeconds int `toml:"interval_min_seconds"`
	IntervalMaxSeconds int `toml:"interval_max_seconds"`
	// MaxSavedStories caps the mirrored collection; tidy deletes the oldest
	// rows beyond it.
	MaxSavedStories int `toml:"max_saved_stories"`
	// Workers is the story hydration pool size.
	Workers int `toml:"workers"`
}

// Server tunes the web server.
type Server struct {
	PageSize int `toml:"page_size"`
}

// Config is the top-level TOML configuration.
type Config struct {
	Mirror Mirror `toml:"mirror"`
	Server Server `toml:"server"`
}

func Default() Config {
	return Config{
		Mirror: Mirror{
			AggregatorURL:      "https://hacker-news.firebaseio.com/v0",
			StoriesLimit:       100,
			IntervalMinSeconds: 60,
			IntervalMaxSeconds: 90,
			MaxSavedStories:    5000,
			Workers:            10,
		},
		Server: Server{
			PageSize: 30,
		},
	}
}

// Load reads the TOML config at path. A missing file is not an error: the
// defaults are returned so the app runs without any config on disk.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithFields(log.Fields{
				"path": path,
			}).Warn("Config file not found, using defaults")
			return cfg, nil
		}
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}

	if cfg.Mirror.IntervalMinSeconds < 1 {
		cfg.Mirror.IntervalMinSeconds = 1
	}
	if cfg.Mirror.IntervalMaxSeconds <= cfg.Mirror.IntervalMinSeconds {
		cfg.Mirror.IntervalMaxSeconds = cfg.Mirror.IntervalMinSeconds + 10
	}
	if cfg.Mirror.Workers < 1 {
		cfg.Mirror.Workers = 10
	}
	if cfg.Server.PageSize < 1 {
		cfg.Server.PageSize = 30
	}
	if cfg.Server.PageSize > relations.MembershipLimit {
		log.WithFields(log.Fields{
			"page_size": cfg.Server.PageSize,
			"max":       relations.MembershipLimit,
		}).Warn("Page size exceeds the membership query bound, clamping")
		cfg.Server.PageSize = relations.MembershipLimit
	}

	return cfg, nil
}

// Write marshals the config to path, used by the init command.
func Write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
