package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment" default:"dev" validate:"oneof=dev prod"`
	Feed        FeedConfig      `mapstructure:"feed"`
	Symbols     []string        `mapstructure:"symbols" default:"[\"R_100\"]" validate:"min=1,dive,required"`
	Analysis    AnalysisConfig  `mapstructure:"analysis"`
	Bots        []BotConfig     `mapstructure:"bots" validate:"dive"`
	Trading     TradingConfig   `mapstructure:"trading"`
	Dashboard   DashboardConfig `mapstructure:"dashboard"`
	Journal     JournalConfig   `mapstructure:"journal"`
	Log         LogConfig       `mapstructure:"log"`
	Postgres    PostgresConfig  `mapstructure:"postgres"`
}

type FeedConfig struct {
	URL              string        `mapstructure:"url" default:"wss://ws.derivws.com/websockets/v3?app_id=1089" validate:"required,url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" default:"10s"`
	PingInterval     time.Duration `mapstructure:"ping_interval" default:"30s"`
	PongWait         time.Duration `mapstructure:"pong_wait" default:"60s"`
	ReadLimit        int64         `mapstructure:"read_limit" default:"1048576"`
	ReconnectMin     time.Duration `mapstructure:"reconnect_min" default:"1s"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max" default:"30s" validate:"gtefield=ReconnectMin"`
	ReconnectFactor  float64       `mapstructure:"reconnect_factor" default:"1.8" validate:"gte=1"`
	MaxAttempts      int           `mapstructure:"max_attempts" validate:"gte=0"`
	SendQueue        int           `mapstructure:"send_queue" default:"64" validate:"gt=0"`
	EventLogSize     int           `mapstructure:"event_log_size" default:"100" validate:"gt=0"`
	// Symbols are refreshed from active_symbols at every UTC midnight.
	SymbolRefresh bool `mapstructure:"symbol_refresh"`
}

type AnalysisConfig struct {
	Capacity    int `mapstructure:"capacity" default:"100" validate:"gt=0"`
	Precision   int `mapstructure:"precision" default:"-1" validate:"gte=-1,lte=10"`
	HistorySize int `mapstructure:"history_size" default:"500" validate:"gt=0"`
}

// BotConfig configures one bot. Zero parameters take the bot's own defaults.
type BotConfig struct {
	Name        string  `mapstructure:"name" validate:"required"`
	Active      bool    `mapstructure:"active"`
	Symbol      string  `mapstructure:"symbol"`
	Stake       string  `mapstructure:"stake" default:"1" validate:"numeric"`
	Threshold   float64 `mapstructure:"threshold" validate:"gte=0,lte=100"`
	Barrier     *int    `mapstructure:"barrier" validate:"omitempty,gte=1,lte=9"` // nil takes the kind default
	MinSamples  int     `mapstructure:"min_samples" validate:"gte=0"`
	TrendLength int     `mapstructure:"trend_length" validate:"gte=0"`

	MaxConsecutiveLosses int     `mapstructure:"max_consecutive_losses" default:"3" validate:"gte=-1"` // -1 never pauses
	CooldownTicks        int     `mapstructure:"cooldown_ticks" default:"10" validate:"gte=0"`
	LossPenalty          float64 `mapstructure:"loss_penalty" default:"0.1" validate:"gte=0,lte=1"`
}

type TradingConfig struct {
	Mode                 string `mapstructure:"mode" default:"paper" validate:"oneof=paper real"`
	AutoTrade            bool   `mapstructure:"auto_trade"`
	Capacity             int    `mapstructure:"capacity" default:"200" validate:"gt=0"`
	PayoutRate           string `mapstructure:"payout_rate" default:"0.95" validate:"numeric"`
	MaxExposure          string `mapstructure:"max_exposure" default:"0" validate:"numeric"`
	MaxOpenTrades        int    `mapstructure:"max_open_trades" validate:"gte=0"`
	MaxConsecutiveLosses int    `mapstructure:"max_consecutive_losses" validate:"gte=0"`
}

type DashboardConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host" default:"0.0.0.0"`
	Port            int           `mapstructure:"port" default:"8080" validate:"gt=0,lte=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"10s"`
	CORS            bool          `mapstructure:"cors"`
}

type JournalConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Store        string        `mapstructure:"store" default:"postgres" validate:"oneof=postgres memory"`
	QueueSize    int           `mapstructure:"queue_size" default:"256" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"5s"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level" default:"info"`                                // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format" default:"json" validate:"oneof=json console"` // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"`                                         // file path to store logs (optional)
	Environment string `mapstructure:"environment"`                                         // "dev" or "prod", defaults to Config.Environment
}

var validate = validator.New()

// Load loads application configuration using Viper.
// It reads path, or config.yaml from the default locations when path is
// empty, and overrides with environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")

		ex, _ := os.Executable()
		if strings.Contains(ex, "go-build") {
			pwd, _ := os.Getwd()
			v.AddConfigPath(filepath.Join(pwd, "../../config"))
		} else {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., FEED_URL, TRADING_AUTO_TRADE)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}
	// Keys absent from the file keep their defaults.
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for i := range cfg.Bots {
		if err := defaults.Set(&cfg.Bots[i]); err != nil {
			return nil, fmt.Errorf("failed to set defaults for bot %d: %w", i, err)
		}
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.Environment
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
