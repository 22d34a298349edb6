// Package main provides the entry point for autoads.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/internal/version"
	"github.com/royhairul/auto-ads-shopee/pkg/agent"
	"github.com/royhairul/auto-ads-shopee/pkg/config"
	"github.com/royhairul/auto-ads-shopee/pkg/lifecycle"
)

var (
	cfgFile string
	dataDir string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autoads",
	Short: "Shopee live-stream ads budget automation",
	Long: `autoads watches ongoing Shopee live-stream ad campaigns and:
- Raises daily budgets when spend nears the cap
- Alerts on campaigns with low return on ad spend
- Resets budgets to the platform minimum each morning`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default searches ./autoads.yaml, $HOME/.autoads, /etc/autoads)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	addOperationCommands(rootCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent",
	Long:  "Start the scheduler and the command server and run until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.ValidateForRun(cfg); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		var opts []agent.Option
		if dryRun {
			opts = append(opts, agent.WithDryRun())
		}

		mgr, err := agent.NewManager(cfg, opts...)
		if err != nil {
			return fmt.Errorf("failed to create manager: %w", err)
		}

		return mgr.Run()
	},
}

func initRunCmd() {
	runCmd.Flags().Bool("dry-run", false, "Keep state in memory and log budget writes instead of sending them")
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install autoads",
	Long:  "Write the configuration, generate the device id, prime the install state and optionally register a systemd service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cookie, _ := cmd.Flags().GetString("cookie")
		cookieFile, _ := cmd.Flags().GetString("cookie-file")
		timezone, _ := cmd.Flags().GetString("timezone")
		tgToken, _ := cmd.Flags().GetString("telegram-token")
		tgChat, _ := cmd.Flags().GetInt64("telegram-chat-id")
		service, _ := cmd.Flags().GetBool("service")
		binary, _ := cmd.Flags().GetString("binary")
		regenerate, _ := cmd.Flags().GetBool("regenerate-device-id")

		logger, _ := initBasicLogger()
		defer logger.Sync()

		dir, err := resolveDataDir()
		if err != nil {
			return err
		}

		installer := lifecycle.NewInstaller(&lifecycle.InstallerConfig{
			DataDir:    dir,
			ConfigPath: configPathOrDefault(),
		}, logger)

		result, err := installer.Install(context.Background(), &lifecycle.InstallOptions{
			Cookie:             cookie,
			CookieFile:         cookieFile,
			Timezone:           timezone,
			TelegramToken:      tgToken,
			TelegramChatID:     tgChat,
			Service:            service,
			BinaryPath:         binary,
			RegenerateDeviceID: regenerate,
		})
		if err != nil {
			return fmt.Errorf("installation failed: %w", err)
		}

		return printJSON(result)
	},
}

func initInstallCmd() {
	installCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory path")
	installCmd.Flags().String("cookie", "", "Seller Centre session cookie")
	installCmd.Flags().String("cookie-file", "", "File holding the session cookie")
	installCmd.Flags().String("timezone", "", "Time zone for the daily reset (default Asia/Jakarta)")
	installCmd.Flags().String("telegram-token", "", "Telegram bot token for notifications")
	installCmd.Flags().Int64("telegram-chat-id", 0, "Telegram chat receiving notifications")
	installCmd.Flags().Bool("service", false, "Register and start the systemd service")
	installCmd.Flags().String("binary", "", "Binary path used by the service unit")
	installCmd.Flags().Bool("regenerate-device-id", false, "Replace the existing SPC_CDS device id")
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall autoads",
	Long:  "Remove the service, the data directory and the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		keepData, _ := cmd.Flags().GetBool("keep-data")
		keepConfig, _ := cmd.Flags().GetBool("keep-config")
		keepLogs, _ := cmd.Flags().GetBool("keep-logs")

		logger, _ := initBasicLogger()
		defer logger.Sync()

		dir, err := resolveDataDir()
		if err != nil {
			return err
		}

		uninstaller := lifecycle.NewUninstaller(dir, configPathOrDefault(), nil, logger)
		result, err := uninstaller.Uninstall(context.Background(), &lifecycle.UninstallOptions{
			KeepData:   keepData,
			KeepConfig: keepConfig,
			KeepLogs:   keepLogs,
		})
		if err != nil {
			return fmt.Errorf("uninstall failed: %w", err)
		}

		if err := printJSON(result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("uninstall completed with errors")
		}
		return nil
	},
}

func initUninstallCmd() {
	uninstallCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory path")
	uninstallCmd.Flags().Bool("keep-data", false, "Keep data directory")
	uninstallCmd.Flags().Bool("keep-config", false, "Keep configuration file")
	uninstallCmd.Flags().Bool("keep-logs", false, "Keep log files")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent status",
	Long:  "Display the agent flags, settings, last cycle, live sessions and service state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			st, err := mgr.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			installer := lifecycle.NewInstaller(&lifecycle.InstallerConfig{
				DataDir:    mgr.Config().Agent.DataDir,
				ConfigPath: configPathOrDefault(),
			}, mgr.Logger())
			info, err := installer.GetInstallInfo()
			if err != nil {
				mgr.Logger().Debug("install info unavailable", zap.Error(err))
			}

			return printJSON(struct {
				Install *lifecycle.InstallInfo `json:"install,omitempty"`
				Agent   any                    `json:"agent"`
			}{info, st})
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetInfo()
		fmt.Println(info.String())
	},
}

func initBasicLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

// loadConfig loads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	loader.SetConfigPath(cfgFile)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// configPathOrDefault returns --config, or the system path install writes to.
func configPathOrDefault() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "/etc/autoads/autoads.yaml"
}

// resolveDataDir returns --data-dir, or the default data directory.
func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	cfg, err := config.Defaults()
	if err != nil {
		return "", err
	}
	return cfg.Agent.DataDir, nil
}

// withManager initializes a manager for a one-shot command and closes it
// when fn returns.
func withManager(fn func(ctx context.Context, mgr *agent.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initBasicLogger()
	if err != nil {
		return err
	}

	mgr, err := agent.NewManager(cfg, agent.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	ctx := context.Background()
	if err := mgr.Init(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	return fn(ctx, mgr)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	initRunCmd()
	initInstallCmd()
	initUninstallCmd()
}
