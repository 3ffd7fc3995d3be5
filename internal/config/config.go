// Package config loads runtime configuration from defaults, an optional
// YAML file, and CHECKMATE_* environment variables, in increasing
// precedence. Command-line flags bind on top via cobra.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fabriziosalmi/checkmate/internal/engine"
)

// Config is the resolved runtime configuration.
type Config struct {
	StorePath  string
	ServerAddr string

	DailyLimit          int
	ExpiryWindow        time.Duration
	SweepInterval       time.Duration
	ConfirmAward        int
	SnoozeAwardReceiver int
	SnoozeAwardSender   int
	ExpireAwardSender   int
	Timezone            string
}

// Keys recognized in the config file and environment.
// CHECKMATE_ENGINE_DAILY_LIMIT overrides engine.daily_limit, and so on.
const (
	KeyStorePath           = "store.path"
	KeyServerAddr          = "server.addr"
	KeyDailyLimit          = "engine.daily_limit"
	KeyExpiryWindow        = "engine.expiry_window"
	KeySweepInterval       = "engine.sweep_interval"
	KeyConfirmAward        = "engine.confirm_award"
	KeySnoozeAwardReceiver = "engine.snooze_award_receiver"
	KeySnoozeAwardSender   = "engine.snooze_award_sender"
	KeyExpireAwardSender   = "engine.expire_award_sender"
	KeyTimezone            = "engine.timezone"
)

// New returns a viper instance with defaults and env binding applied.
// Exposed separately so commands can bind flags onto it.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyStorePath, "checkmate.db")
	v.SetDefault(KeyServerAddr, ":8080")
	v.SetDefault(KeyDailyLimit, engine.DefaultDailyLimit)
	v.SetDefault(KeyExpiryWindow, engine.DefaultExpiryWindow)
	v.SetDefault(KeySweepInterval, engine.DefaultSweepInterval)
	v.SetDefault(KeyConfirmAward, engine.DefaultConfirmAward)
	v.SetDefault(KeySnoozeAwardReceiver, engine.DefaultSnoozeAwardReceiver)
	v.SetDefault(KeySnoozeAwardSender, engine.DefaultSnoozeAwardSender)
	v.SetDefault(KeyExpireAwardSender, engine.DefaultExpireAwardSender)
	v.SetDefault(KeyTimezone, "Local")

	v.SetEnvPrefix("CHECKMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load resolves the configuration, reading configFile if non-empty.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", configFile, err)
		}
	}

	cfg := Config{
		StorePath:           v.GetString(KeyStorePath),
		ServerAddr:          v.GetString(KeyServerAddr),
		DailyLimit:          v.GetInt(KeyDailyLimit),
		ExpiryWindow:        v.GetDuration(KeyExpiryWindow),
		SweepInterval:       v.GetDuration(KeySweepInterval),
		ConfirmAward:        v.GetInt(KeyConfirmAward),
		SnoozeAwardReceiver: v.GetInt(KeySnoozeAwardReceiver),
		SnoozeAwardSender:   v.GetInt(KeySnoozeAwardSender),
		ExpireAwardSender:   v.GetInt(KeyExpireAwardSender),
		Timezone:            v.GetString(KeyTimezone),
	}

	if cfg.DailyLimit < 1 {
		return Config{}, fmt.Errorf("%s must be at least 1, got %d", KeyDailyLimit, cfg.DailyLimit)
	}
	if cfg.ExpiryWindow <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %s", KeyExpiryWindow, cfg.ExpiryWindow)
	}
	if cfg.SweepInterval < 0 {
		return Config{}, fmt.Errorf("%s must not be negative, got %s", KeySweepInterval, cfg.SweepInterval)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", KeyTimezone, err)
	}

	return cfg, nil
}

// Location resolves the configured timezone for calendar-day rollover.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// EngineOptions translates the configuration into engine options.
func (c Config) EngineOptions() ([]engine.Option, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return []engine.Option{
		engine.WithDailyLimit(c.DailyLimit),
		engine.WithExpiryWindow(c.ExpiryWindow),
		engine.WithConfirmAward(c.ConfirmAward),
		engine.WithSnoozeAwards(c.SnoozeAwardReceiver, c.SnoozeAwardSender),
		engine.WithExpireAward(c.ExpireAwardSender),
		engine.WithLocation(loc),
	}, nil
}
