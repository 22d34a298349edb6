package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Uninstaller handles removal
type Uninstaller struct {
	logger     *zap.Logger
	dataDir    string
	configPath string
	services   ServiceManager
}

// NewUninstaller creates a new uninstaller. A nil services uses the platform
// service manager.
func NewUninstaller(dataDir, configPath string, services ServiceManager, logger *zap.Logger) *Uninstaller {
	if services == nil {
		services = newServiceManager()
	}
	return &Uninstaller{
		logger:     logger.Named("uninstaller"),
		dataDir:    dataDir,
		configPath: configPath,
		services:   services,
	}
}

// UninstallOptions contains uninstallation options
type UninstallOptions struct {
	KeepData   bool // Keep the store and templates
	KeepConfig bool // Keep configuration file
	KeepLogs   bool // Keep log files when removing data
}

// UninstallResult contains uninstallation results
type UninstallResult struct {
	Success        bool          `json:"success"`
	RemovedService bool          `json:"removed_service"`
	RemovedData    bool          `json:"removed_data"`
	RemovedConfig  bool          `json:"removed_config"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Uninstall removes the service and, unless kept, the data and config. Every
// step runs; failures are collected in the result.
func (u *Uninstaller) Uninstall(ctx context.Context, opts *UninstallOptions) (*UninstallResult, error) {
	if opts == nil {
		opts = &UninstallOptions{}
	}
	startTime := time.Now()
	result := &UninstallResult{Errors: make([]string, 0)}

	u.logger.Info("starting uninstallation")

	if err := u.services.Remove(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to remove service: %v", err))
	} else {
		result.RemovedService = true
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !opts.KeepData {
		if err := u.removeDataDir(opts.KeepLogs); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to remove data directory: %v", err))
		} else {
			result.RemovedData = true
		}
	}

	if !opts.KeepConfig {
		if err := os.Remove(u.configPath); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to remove config: %v", err))
		} else {
			result.RemovedConfig = true
		}
	}

	result.Duration = time.Since(startTime)
	result.Success = len(result.Errors) == 0

	u.logger.Info("uninstallation completed",
		zap.Bool("success", result.Success),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// removeDataDir removes the data directory
func (u *Uninstaller) removeDataDir(keepLogs bool) error {
	if !keepLogs {
		return os.RemoveAll(u.dataDir)
	}

	entries, err := os.ReadDir(u.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.Name() == "logs" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(u.dataDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
