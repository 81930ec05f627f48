// Package config provides configuration management for the scalping engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"option-scalper/internal/errors"
)

// SelectionMode selects AUTO or MANUAL resolution policy.
type SelectionMode string

const (
	ModeAuto   SelectionMode = "AUTO"
	ModeManual SelectionMode = "MANUAL"
)

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig      `mapstructure:"trading"`
	Risk        RiskConfig         `mapstructure:"risk"`
	Timers      TimerConfig        `mapstructure:"timers"`
	Instruments []InstrumentConfig `mapstructure:"instruments"`
	Log         LogFileConfig      `mapstructure:"log"`
	Credentials Credentials        `mapstructure:"-"` // loaded separately
}

// TradingConfig holds session-level trading configuration.
type TradingConfig struct {
	Mode           string `mapstructure:"mode"`             // "live", "paper"
	Product        string `mapstructure:"product"`          // MIS, NRML
	SquareOffTime  string `mapstructure:"square_off_time"`  // HH:MM, IST
	ExpiryCutover  string `mapstructure:"expiry_cutover"`   // HH:MM, 0-DTE roll point
	FeedStaleAfter string `mapstructure:"feed_stale_after"` // duration, e.g. "5s"
}

// RiskConfig holds the day-wise PnL discipline thresholds.
type RiskConfig struct {
	StopLoss      float64 `mapstructure:"stop_loss"`       // positive magnitude
	Target        float64 `mapstructure:"target"`
	MoveToCost    float64 `mapstructure:"move_to_cost"`
	TrailAfter    float64 `mapstructure:"trail_after"`
	TrailBy       float64 `mapstructure:"trail_by"`
	ThresholdStep float64 `mapstructure:"threshold_step"` // manual +/- increment
}

// TimerConfig holds the periodic timer cadences.
type TimerConfig struct {
	UIRefresh   string `mapstructure:"ui_refresh"`   // duration
	AutoTrailer string `mapstructure:"auto_trailer"` // duration
}

// InstrumentConfig configures one tradeable underlying.
type InstrumentConfig struct {
	Underlying     string        `mapstructure:"underlying"` // e.g. NIFTY
	Symbol         string        `mapstructure:"symbol"`     // cash proxy, e.g. NIFTYBEES
	Exchange       string        `mapstructure:"exchange"`   // NSE or NFO
	ExpiryMode     SelectionMode `mapstructure:"expiry_mode"`
	ExpiryDate     string        `mapstructure:"expiry_date"` // 02-Jan-2006, MANUAL only
	StrikeMode     SelectionMode `mapstructure:"strike_mode"`
	StrikeStep     float64       `mapstructure:"strike_step"`
	CEStrikeOffset int           `mapstructure:"ce_strike_offset"`
	PEStrikeOffset int           `mapstructure:"pe_strike_offset"`
	CEStrike       float64       `mapstructure:"ce_strike"` // explicit override, 0 = unset
	PEStrike       float64       `mapstructure:"pe_strike"`
	Quantity       int           `mapstructure:"quantity"`   // lots for NFO, units for NSE
	FreezeQty      int           `mapstructure:"freeze_qty"` // exchange freeze limit in units, 0 = none
	Legs           int           `mapstructure:"legs"`
	OrderStyle     string        `mapstructure:"order_style"` // PLAIN, BRACKET, OCO
	ProfitPoints   float64       `mapstructure:"profit_points"`
	StopLossPoints float64       `mapstructure:"stop_loss_points"`
}

// LogFileConfig holds log file settings.
type LogFileConfig struct {
	Level string `mapstructure:"level"`
	File  bool   `mapstructure:"file"`
}

// Credentials holds broker API credentials. Token acquisition is an
// external concern; the engine only consumes an already-issued token.
type Credentials struct {
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/option-scalper"
	}
	return filepath.Join(home, ".config", "option-scalper")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.product", "MIS")
	v.SetDefault("trading.square_off_time", "15:12")
	v.SetDefault("trading.expiry_cutover", "15:00")
	v.SetDefault("trading.feed_stale_after", "5s")
	v.SetDefault("risk.threshold_step", 100.0)
	v.SetDefault("timers.ui_refresh", "1s")
	v.SetDefault("timers.auto_trailer", "1s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", true)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.AccessToken = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
}

// Validate validates the configuration. Malformed entries are rejected
// eagerly rather than deferred to runtime.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (must be 'live' or 'paper')", c.Trading.Mode)
	}
	if _, err := ParseTimeOfDay(c.Trading.SquareOffTime); err != nil {
		return errors.NewConfigError("trading.square_off_time", c.Trading.SquareOffTime, "must be HH:MM")
	}
	if _, err := ParseTimeOfDay(c.Trading.ExpiryCutover); err != nil {
		return errors.NewConfigError("trading.expiry_cutover", c.Trading.ExpiryCutover, "must be HH:MM")
	}
	if _, err := time.ParseDuration(c.Trading.FeedStaleAfter); err != nil {
		return errors.NewConfigError("trading.feed_stale_after", c.Trading.FeedStaleAfter, "must be a duration")
	}
	if _, err := time.ParseDuration(c.Timers.UIRefresh); err != nil {
		return errors.NewConfigError("timers.ui_refresh", c.Timers.UIRefresh, "must be a duration")
	}
	if _, err := time.ParseDuration(c.Timers.AutoTrailer); err != nil {
		return errors.NewConfigError("timers.auto_trailer", c.Timers.AutoTrailer, "must be a duration")
	}

	if c.Risk.StopLoss < 0 || c.Risk.Target < 0 || c.Risk.TrailBy < 0 {
		return errors.NewConfigError("risk", c.Risk, "thresholds must be non-negative magnitudes")
	}

	for i, inst := range c.Instruments {
		if err := inst.Validate(); err != nil {
			return fmt.Errorf("instrument %d (%s): %w", i, inst.Underlying, err)
		}
	}

	return nil
}

// Validate validates a single instrument entry.
func (ic *InstrumentConfig) Validate() error {
	if ic.Underlying == "" {
		return errors.NewConfigError("underlying", "", "must not be empty")
	}
	switch ic.Exchange {
	case "NSE", "NFO":
	default:
		return errors.NewConfigError("exchange", ic.Exchange, "must be NSE or NFO")
	}
	if ic.Quantity <= 0 {
		return errors.NewConfigError("quantity", ic.Quantity, "must be positive")
	}
	if ic.Legs <= 0 {
		return errors.NewConfigError("legs", ic.Legs, "must be positive")
	}
	switch ic.OrderStyle {
	case "", "PLAIN", "BRACKET", "OCO":
	default:
		return errors.NewConfigError("order_style", ic.OrderStyle, "must be PLAIN, BRACKET or OCO")
	}
	if ic.Exchange == "NFO" && ic.StrikeStep <= 0 {
		return errors.NewConfigError("strike_step", ic.StrikeStep, "NFO instrument requires a strike step")
	}
	switch ic.ExpiryMode {
	case "", ModeAuto, ModeManual:
	default:
		return errors.NewConfigError("expiry_mode", ic.ExpiryMode, "must be AUTO or MANUAL")
	}
	switch ic.StrikeMode {
	case "", ModeAuto, ModeManual:
	default:
		return errors.NewConfigError("strike_mode", ic.StrikeMode, "must be AUTO or MANUAL")
	}
	return nil
}

// TimeOfDay is a wall-clock time within a trading day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:MM string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var tod TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &tod.Hour, &tod.Minute); err != nil {
		return tod, fmt.Errorf("parsing time of day %q: %w", s, err)
	}
	if tod.Hour < 0 || tod.Hour > 23 || tod.Minute < 0 || tod.Minute > 59 {
		return tod, fmt.Errorf("time of day %q out of range", s)
	}
	return tod, nil
}

// On projects the time-of-day onto the given date in its location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}
