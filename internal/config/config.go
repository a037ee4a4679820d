package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	// Missing .env is fine; the system environment still applies.
	_ = godotenv.Load()
}

// Config holds process-level settings. Anything that varies per guild lives in
// stored guild preferences, not here.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	SongsPath   string `env:"SONGS_PATH" envDefault:"songs.json"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8787"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE" envDefault:""`

	// Sessions with no activity for this long are ended by the reaper.
	IdleSessionTimeout time.Duration `env:"IDLE_SESSION_TIMEOUT" envDefault:"30m"`

	// Window after the first correct guess during which near-simultaneous
	// correct guesses from other users are still credited.
	MultiGuessDelay time.Duration `env:"MULTIGUESS_DELAY" envDefault:"1500ms"`

	// Hour of day (UTC) when the power-hour EXP bonus applies; -1 disables it.
	PowerHour int `env:"POWER_HOUR" envDefault:"-1"`
}

// New parses the environment into a Config.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
