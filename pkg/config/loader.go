// Package config handles configuration loading and management for autoads.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete agent configuration
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Shopee    ShopeeConfig    `mapstructure:"shopee" yaml:"shopee"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Events    EventsConfig    `mapstructure:"events" yaml:"events"`
	ErrorLog  ErrorLogConfig  `mapstructure:"errlog" yaml:"errlog"`
	Health    HealthConfig    `mapstructure:"health" yaml:"health"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// AgentConfig contains agent-specific configuration
type AgentConfig struct {
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// ShopeeConfig contains seller platform client configuration
type ShopeeConfig struct {
	SellerURL     string        `mapstructure:"seller_url" yaml:"seller_url"`
	AccountURL    string        `mapstructure:"account_url" yaml:"account_url"`
	CreatorURL    string        `mapstructure:"creator_url" yaml:"creator_url"`
	Cookie        string        `mapstructure:"cookie" yaml:"cookie"`
	CookieFile    string        `mapstructure:"cookie_file" yaml:"cookie_file"`
	SPCCDS        string        `mapstructure:"spc_cds" yaml:"spc_cds"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CampaignLimit int           `mapstructure:"campaign_limit" yaml:"campaign_limit"`
	Retry         RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Breaker       BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

// RetryConfig contains retry settings for transient HTTP failures
type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier" yaml:"multiplier"`
}

// BreakerConfig contains circuit breaker settings
type BreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures" yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout" yaml:"open_timeout"`
}

// StoreConfig contains key-value store configuration
type StoreConfig struct {
	Path   string            `mapstructure:"path" yaml:"path"`
	Synced SyncedStoreConfig `mapstructure:"synced" yaml:"synced"`
}

// SyncedStoreConfig selects the backend for the account-synced scope
type SyncedStoreConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	RedisURL  string `mapstructure:"redis_url" yaml:"redis_url"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// SchedulerConfig contains the check cadence
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ServerConfig contains command server configuration
type ServerConfig struct {
	Enabled    bool     `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	Port       int      `mapstructure:"port" yaml:"port"`
	JWTSecret  string   `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Tokens     []string `mapstructure:"tokens" yaml:"tokens"`
	Debug      bool     `mapstructure:"debug" yaml:"debug"`
}

// NotifyConfig contains notification sink configuration
type NotifyConfig struct {
	TemplatesDir string         `mapstructure:"templates_dir" yaml:"templates_dir"`
	Telegram     TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

// TelegramConfig contains Telegram bot settings
type TelegramConfig struct {
	Token  string `mapstructure:"token" yaml:"token"`
	ChatID int64  `mapstructure:"chat_id" yaml:"chat_id"`
}

// EventsConfig contains outbound event configuration
type EventsConfig struct {
	WebhookURL   string        `mapstructure:"webhook_url" yaml:"webhook_url"`
	WebhookToken string        `mapstructure:"webhook_token" yaml:"webhook_token"`
	QueueSize    int           `mapstructure:"queue_size" yaml:"queue_size"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ErrorLogConfig contains error log settings
type ErrorLogConfig struct {
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// HealthConfig contains health monitoring configuration
type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	MinDiskSpace  uint64        `mapstructure:"min_disk_space" yaml:"min_disk_space"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// envKeyReplacer maps nested keys such as shopee.cookie to AUTOADS_SHOPEE_COOKIE
var envKeyReplacer = strings.NewReplacer(".", "_")

// Loader handles configuration loading from multiple sources
type Loader struct {
	v          *viper.Viper
	configPath string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigPath sets the configuration file path
func (l *Loader) SetConfigPath(path string) {
	l.configPath = path
}

// Load loads the configuration from all sources
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
	} else {
		l.v.SetConfigName("autoads")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath("/etc/autoads")
		l.v.AddConfigPath("$HOME/.autoads")
		l.v.AddConfigPath(".")
	}

	// Read config file (ignore if not found)
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	l.v.SetEnvPrefix("AUTOADS")
	l.v.SetEnvKeyReplacer(envKeyReplacer)
	l.v.AutomaticEnv()

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.Agent.DataDir, "autoads.db")
	}

	return &cfg, nil
}

// Defaults returns the built-in configuration without reading any file or
// environment variable.
func Defaults() (*Config, error) {
	l := NewLoader()
	l.setDefaults()

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	l.v.SetDefault("agent.data_dir", defaultDataDir())
	l.v.SetDefault("agent.timezone", "Asia/Jakarta")

	l.v.SetDefault("shopee.seller_url", "https://seller.shopee.co.id")
	l.v.SetDefault("shopee.account_url", "https://shopee.co.id")
	l.v.SetDefault("shopee.creator_url", "https://creator.shopee.co.id")
	l.v.SetDefault("shopee.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	l.v.SetDefault("shopee.timeout", "15s")
	l.v.SetDefault("shopee.campaign_limit", 20)
	l.v.SetDefault("shopee.retry.max_retries", 2)
	l.v.SetDefault("shopee.retry.initial_delay", "1s")
	l.v.SetDefault("shopee.retry.max_delay", "10s")
	l.v.SetDefault("shopee.retry.multiplier", 2.0)
	l.v.SetDefault("shopee.breaker.consecutive_failures", 5)
	l.v.SetDefault("shopee.breaker.open_timeout", "30s")

	l.v.SetDefault("store.synced.driver", "sqlite")
	l.v.SetDefault("store.synced.key_prefix", "autoads")

	l.v.SetDefault("scheduler.interval", "1m")

	l.v.SetDefault("server.enabled", true)
	l.v.SetDefault("server.listen_addr", "127.0.0.1")
	l.v.SetDefault("server.port", 8787)

	l.v.SetDefault("events.queue_size", 100)
	l.v.SetDefault("events.timeout", "10s")

	l.v.SetDefault("errlog.max_entries", 200)

	l.v.SetDefault("health.check_interval", "30s")
	l.v.SetDefault("health.min_disk_space", 50*1024*1024)

	l.v.SetDefault("logging.level", "info")
	l.v.SetDefault("logging.format", "json")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/autoads"
	}
	return filepath.Join(home, ".autoads")
}

// GetConfigPath returns the path to the configuration file being used
func (l *Loader) GetConfigPath() string {
	return l.v.ConfigFileUsed()
}

// SaveConfig saves the current configuration to a file
func (l *Loader) SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	l.v.Set("agent", cfg.Agent)
	l.v.Set("shopee", cfg.Shopee)
	l.v.Set("store", cfg.Store)
	l.v.Set("scheduler", cfg.Scheduler)
	l.v.Set("server", cfg.Server)
	l.v.Set("notify", cfg.Notify)
	l.v.Set("events", cfg.Events)
	l.v.Set("errlog", cfg.ErrorLog)
	l.v.Set("health", cfg.Health)
	l.v.Set("logging", cfg.Logging)

	return l.v.WriteConfigAs(path)
}
