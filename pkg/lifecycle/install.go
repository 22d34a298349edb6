// Package lifecycle installs and removes autoads on a host.
package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/internal/version"
	"github.com/royhairul/auto-ads-shopee/pkg/clock"
	"github.com/royhairul/auto-ads-shopee/pkg/config"
	"github.com/royhairul/auto-ads-shopee/pkg/state"
	"github.com/royhairul/auto-ads-shopee/pkg/store"
)

// ServiceUnit describes the service to register with the init system.
type ServiceUnit struct {
	BinaryPath string
	ConfigPath string
	DataDir    string
}

// ServiceManager installs and inspects the autoads system service.
type ServiceManager interface {
	Install(unit ServiceUnit) error
	Status() string
	Stop() error
	Remove() error
}

// Installer handles installation
type Installer struct {
	logger     *zap.Logger
	dataDir    string
	configPath string
	clock      clock.Clock
	services   ServiceManager
}

// InstallerConfig contains installer configuration
type InstallerConfig struct {
	DataDir    string
	ConfigPath string
	// Clock decides the day stamped into the install state. Defaults to the
	// system clock in the configured timezone.
	Clock clock.Clock
	// Services overrides the platform service manager.
	Services ServiceManager
}

// NewInstaller creates a new installer
func NewInstaller(cfg *InstallerConfig, logger *zap.Logger) *Installer {
	services := cfg.Services
	if services == nil {
		services = newServiceManager()
	}
	return &Installer{
		logger:     logger.Named("installer"),
		dataDir:    cfg.DataDir,
		configPath: cfg.ConfigPath,
		clock:      cfg.Clock,
		services:   services,
	}
}

// InstallOptions contains installation options
type InstallOptions struct {
	Cookie         string
	CookieFile     string
	Timezone       string
	TelegramToken  string
	TelegramChatID int64
	// Service registers and starts the system service after writing config.
	Service    bool
	BinaryPath string
	// RegenerateDeviceID replaces an existing SPC_CDS.
	RegenerateDeviceID bool
}

// InstallResult reports what Install did.
type InstallResult struct {
	ConfigPath       string `json:"config_path"`
	DataDir          string `json:"data_dir"`
	StorePath        string `json:"store_path"`
	SPCCDS           string `json:"spc_cds"`
	Primed           bool   `json:"primed"`
	ServiceInstalled bool   `json:"service_installed"`
}

// Install writes the configuration, primes the install state and optionally
// registers the system service. Running it again keeps the existing
// configuration and device id.
func (i *Installer) Install(ctx context.Context, opts *InstallOptions) (*InstallResult, error) {
	if opts == nil {
		opts = &InstallOptions{}
	}
	i.logger.Info("starting installation",
		zap.String("data_dir", i.dataDir),
		zap.String("config", i.configPath))

	if err := i.createDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	base, err := i.baseConfig()
	if err != nil {
		return nil, err
	}

	cfg, err := i.generateConfig(base, opts)
	if err != nil {
		return nil, err
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("generated configuration is invalid: %w", err)
	}

	loader := config.NewLoader()
	if err := loader.SaveConfig(cfg, i.configPath); err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}

	result := &InstallResult{
		ConfigPath: i.configPath,
		DataDir:    i.dataDir,
		StorePath:  cfg.Store.Path,
		SPCCDS:     cfg.Shopee.SPCCDS,
	}

	primed, err := i.primeState(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prime state: %w", err)
	}
	result.Primed = primed

	if opts.Service {
		unit := ServiceUnit{
			BinaryPath: opts.BinaryPath,
			ConfigPath: i.configPath,
			DataDir:    i.dataDir,
		}
		if unit.BinaryPath == "" {
			unit.BinaryPath = defaultBinaryPath
		}
		if err := i.services.Install(unit); err != nil {
			return result, fmt.Errorf("failed to install service: %w", err)
		}
		result.ServiceInstalled = true
	}

	i.logger.Info("installation completed",
		zap.Bool("primed", result.Primed),
		zap.Bool("service", result.ServiceInstalled))

	return result, nil
}

// createDirectories creates necessary directories
func (i *Installer) createDirectories() error {
	dirs := []string{
		i.dataDir,
		filepath.Join(i.dataDir, "logs"),
		filepath.Join(i.dataDir, "templates"),
		filepath.Dir(i.configPath),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// baseConfig loads the existing config file, or the defaults when none exists.
func (i *Installer) baseConfig() (*config.Config, error) {
	if _, err := os.Stat(i.configPath); err == nil {
		loader := config.NewLoader()
		loader.SetConfigPath(i.configPath)
		cfg, err := loader.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load existing config: %w", err)
		}
		i.logger.Info("reusing existing configuration")
		return cfg, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to check config: %w", err)
	}

	cfg, err := config.Defaults()
	if err != nil {
		return nil, err
	}
	cfg.Store.Path = ""
	return cfg, nil
}

// generateConfig fills in the installation-specific fields.
func (i *Installer) generateConfig(cfg *config.Config, opts *InstallOptions) (*config.Config, error) {
	cfg.Agent.DataDir = i.dataDir
	if opts.Timezone != "" {
		cfg.Agent.Timezone = opts.Timezone
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(i.dataDir, "autoads.db")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(i.dataDir, "logs", "autoads.log")
	}
	if cfg.Notify.TemplatesDir == "" {
		cfg.Notify.TemplatesDir = filepath.Join(i.dataDir, "templates")
	}

	if opts.Cookie != "" {
		cfg.Shopee.Cookie = opts.Cookie
	}
	if opts.CookieFile != "" {
		cfg.Shopee.CookieFile = opts.CookieFile
	}
	if cfg.Shopee.SPCCDS == "" || opts.RegenerateDeviceID {
		cfg.Shopee.SPCCDS = uuid.NewString()
	}

	if opts.TelegramToken != "" {
		cfg.Notify.Telegram.Token = opts.TelegramToken
		cfg.Notify.Telegram.ChatID = opts.TelegramChatID
	}

	if cfg.Server.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Server.JWTSecret = secret
	}

	return cfg, nil
}

// primeState marks the install as done in the local store. It reports false
// when an earlier install already did so.
func (i *Installer) primeState(ctx context.Context, cfg *config.Config) (bool, error) {
	db, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	st := state.New(db.Scope(store.ScopeLocal), db.Scope(store.ScopeSynced))
	flags, err := st.Flags(ctx)
	if err != nil {
		return false, err
	}
	if flags.FirstInstallDone {
		return false, nil
	}

	c := i.clock
	if c == nil {
		loc, err := loadLocation(cfg.Agent.Timezone)
		if err != nil {
			return false, err
		}
		c = clock.Real{Location: loc}
	}
	if err := st.PrimeInstall(ctx, clock.Today(c)); err != nil {
		return false, err
	}
	return true, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// InstallInfo describes the current installation.
type InstallInfo struct {
	Version       string `json:"version"`
	DataDir       string `json:"data_dir"`
	ConfigPath    string `json:"config_path"`
	StorePath     string `json:"store_path"`
	DeviceID      string `json:"device_id"`
	ServiceStatus string `json:"service_status"`
}

// GetInstallInfo returns installation information
func (i *Installer) GetInstallInfo() (*InstallInfo, error) {
	loader := config.NewLoader()
	loader.SetConfigPath(i.configPath)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &InstallInfo{
		Version:       version.Version,
		DataDir:       cfg.Agent.DataDir,
		ConfigPath:    i.configPath,
		StorePath:     cfg.Store.Path,
		DeviceID:      cfg.Shopee.SPCCDS,
		ServiceStatus: i.services.Status(),
	}, nil
}
