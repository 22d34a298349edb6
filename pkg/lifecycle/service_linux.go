//go:build linux

package lifecycle

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const defaultBinaryPath = "/usr/local/bin/autoads"

const systemdServiceTemplate = `[Unit]
Description=autoads - Shopee ads budget automation
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s run --config %s
Restart=always
RestartSec=5
StandardOutput=journal
StandardError=journal
SyslogIdentifier=autoads

NoNewPrivileges=true
ProtectSystem=strict
ProtectHome=read-only
PrivateTmp=true
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`

const (
	serviceName        = "autoads"
	systemdServicePath = "/etc/systemd/system/autoads.service"
)

// systemd manages the autoads unit through systemctl.
type systemd struct {
	unitPath string
}

func newServiceManager() ServiceManager {
	return &systemd{unitPath: systemdServicePath}
}

// renderUnit returns the unit file for u.
func renderUnit(u ServiceUnit) string {
	return fmt.Sprintf(systemdServiceTemplate, u.BinaryPath, u.ConfigPath, u.DataDir)
}

func (s *systemd) Install(u ServiceUnit) error {
	if err := os.WriteFile(s.unitPath, []byte(renderUnit(u)), 0644); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", serviceName},
		{"start", serviceName},
	} {
		if err := systemctl(args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *systemd) Status() string {
	output, err := exec.Command("systemctl", "is-active", serviceName).Output()
	if err != nil {
		if out := strings.TrimSpace(string(output)); out != "" {
			return out
		}
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

func (s *systemd) Stop() error {
	return systemctl("stop", serviceName)
}

func (s *systemd) Remove() error {
	systemctl("stop", serviceName)
	systemctl("disable", serviceName)

	if err := os.Remove(s.unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove service file: %w", err)
	}
	return systemctl("daemon-reload")
}

func systemctl(args ...string) error {
	out, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
