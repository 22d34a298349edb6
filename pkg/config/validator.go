package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validator validates configuration
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors
func (v *Validator) Validate(cfg *Config) error {
	v.errors = nil

	v.validateAgent(cfg.Agent)
	v.validateShopee(cfg.Shopee)
	v.validateStore(cfg.Store)
	v.validateScheduler(cfg.Scheduler)
	v.validateServer(cfg.Server)
	v.validateEvents(cfg.Events)

	if cfg.ErrorLog.MaxEntries < 1 {
		v.addError("errlog.max_entries", "must be at least 1")
	}
	if cfg.Health.CheckInterval <= 0 {
		v.addError("health.check_interval", "must be positive")
	}

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// validateAgent validates agent configuration
func (v *Validator) validateAgent(cfg AgentConfig) {
	if cfg.DataDir == "" {
		v.addError("agent.data_dir", "data directory is required")
	} else if err := v.validateDirectory(cfg.DataDir, true); err != nil {
		v.addError("agent.data_dir", err.Error())
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		v.addError("agent.timezone", "unknown time zone")
	}
}

// validateShopee validates seller platform client configuration
func (v *Validator) validateShopee(cfg ShopeeConfig) {
	for field, raw := range map[string]string{
		"shopee.seller_url":  cfg.SellerURL,
		"shopee.account_url": cfg.AccountURL,
		"shopee.creator_url": cfg.CreatorURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			v.addError(field, "invalid URL format")
		}
	}

	if cfg.CookieFile != "" {
		if err := v.validateFileExists(cfg.CookieFile); err != nil {
			v.addError("shopee.cookie_file", err.Error())
		}
	}

	if cfg.Timeout <= 0 {
		v.addError("shopee.timeout", "must be positive")
	}

	if cfg.CampaignLimit < 1 {
		v.addError("shopee.campaign_limit", "must be at least 1")
	}

	if cfg.Retry.MaxRetries < 0 {
		v.addError("shopee.retry.max_retries", "must not be negative")
	}

	if cfg.Retry.MaxDelay < cfg.Retry.InitialDelay {
		v.addError("shopee.retry.max_delay", "must be greater than or equal to initial_delay")
	}

	if cfg.Retry.Multiplier < 1 {
		v.addError("shopee.retry.multiplier", "must be at least 1")
	}

	if cfg.Breaker.ConsecutiveFailures == 0 {
		v.addError("shopee.breaker.consecutive_failures", "must be at least 1")
	}
}

// validateStore validates store configuration
func (v *Validator) validateStore(cfg StoreConfig) {
	if cfg.Path == "" {
		v.addError("store.path", "database path is required")
	}

	switch cfg.Synced.Driver {
	case "sqlite":
	case "redis":
		if cfg.Synced.RedisURL == "" {
			v.addError("store.synced.redis_url", "required when driver is redis")
		}
	default:
		v.addError("store.synced.driver", "must be sqlite or redis")
	}
}

// validateScheduler validates the check cadence
func (v *Validator) validateScheduler(cfg SchedulerConfig) {
	if cfg.Interval < time.Second {
		v.addError("scheduler.interval", "must be at least 1s")
	}
}

// validateServer validates command server configuration
func (v *Validator) validateServer(cfg ServerConfig) {
	if !cfg.Enabled {
		return
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", "must be between 1 and 65535")
	}
}

// validateEvents validates the webhook sink configuration
func (v *Validator) validateEvents(cfg EventsConfig) {
	if cfg.WebhookURL != "" {
		if _, err := url.Parse(cfg.WebhookURL); err != nil {
			v.addError("events.webhook_url", "invalid URL format")
		}
	}

	if cfg.QueueSize < 1 {
		v.addError("events.queue_size", "must be at least 1")
	}
}

// addError adds a validation error
func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// validateDirectory validates a directory path
func (v *Validator) validateDirectory(path string, createIfMissing bool) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if createIfMissing {
			return nil // Will be created later
		}
		return fmt.Errorf("directory does not exist")
	}
	if err != nil {
		return fmt.Errorf("failed to check directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

// validateFileExists validates that a file exists
func (v *Validator) validateFileExists(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist")
	}
	if err != nil {
		return fmt.Errorf("failed to check file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	return nil
}

// ValidateForRun validates that the agent can reach the seller platform
func ValidateForRun(cfg *Config) error {
	v := NewValidator()

	if cfg.Shopee.Cookie == "" && cfg.Shopee.CookieFile == "" {
		v.addError("shopee.cookie", "a session cookie or cookie_file is required")
	}

	if cfg.Shopee.SPCCDS == "" {
		v.addError("shopee.spc_cds", "required, run install to generate one")
	}

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}
