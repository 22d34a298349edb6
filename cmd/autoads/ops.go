package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/royhairul/auto-ads-shopee/pkg/agent"
	"github.com/royhairul/auto-ads-shopee/pkg/api"
	"github.com/royhairul/auto-ads-shopee/pkg/config"
	"github.com/royhairul/auto-ads-shopee/pkg/server"
	"github.com/royhairul/auto-ads-shopee/pkg/settings"
	"github.com/royhairul/auto-ads-shopee/pkg/shopee"
)

func addOperationCommands(root *cobra.Command) {
	root.AddCommand(checkCmd)
	root.AddCommand(resetCmd)
	root.AddCommand(activeCmd)
	root.AddCommand(tokenCmd)

	campaignsCmd.AddCommand(campaignStatusCmd)
	root.AddCommand(campaignsCmd)

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsExportCmd)
	root.AddCommand(settingsCmd)

	errorsCmd.AddCommand(errorsListCmd, errorsClearCmd, errorsExportCmd)
	root.AddCommand(errorsCmd)

	settingsSetCmd.Flags().StringP("file", "f", "", "YAML file with settings to apply")
	settingsExportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	errorsListCmd.Flags().Int("limit", 0, "Show only the newest N entries")
	errorsListCmd.Flags().Duration("since", 0, "Show entries newer than this age, e.g. 24h")
	errorsExportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	tokenCmd.Flags().String("subject", "cli", "Token subject")
	tokenCmd.Flags().String("scope", "commands", "Token scope")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one campaign check now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			res, err := mgr.Dispatcher().Check(ctx)
			if err != nil {
				return err
			}
			out := struct {
				Outcome  string `json:"outcome"`
				Updated  any    `json:"updated"`
				Alerts   int    `json:"alerts"`
				ResetRan bool   `json:"resetRan"`
				Error    string `json:"error,omitempty"`
			}{
				Outcome:  string(res.Outcome),
				Updated:  res.Updated,
				Alerts:   res.Alerts,
				ResetRan: res.ResetRan,
			}
			if res.Err != nil {
				out.Error = res.Err.Error()
			}
			return printJSON(out)
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset ongoing campaign budgets to the platform minimum now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			res, err := mgr.Dispatcher().Reset(ctx)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var activeCmd = &cobra.Command{
	Use:       "active <on|off>",
	Short:     "Turn automation on or off",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, _ := json.Marshal(api.ActivePayload{Active: args[0] == "on"})
		return sendCommand(api.Message{Type: api.TypeSetExtensionActive, Payload: payload})
	},
}

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "List ongoing campaigns with spend, budget and ROAS",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			campaigns, err := mgr.Client().GetCampaignList(ctx, shopee.StateOngoing)
			if err != nil {
				return fmt.Errorf("failed to list campaigns: %w", err)
			}
			writeCampaigns(os.Stdout, campaigns)
			return nil
		})
	},
}

var campaignStatusCmd = &cobra.Command{
	Use:   "set-status <campaign-id> <resume|pause|stop>",
	Short: "Resume, pause or stop a campaign",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid campaign id %q", args[0])
		}
		if _, err := shopee.ParseStatusAction(args[1]); err != nil {
			return err
		}
		payload, _ := json.Marshal(api.CampaignStatusPayload{ID: id, Action: args[1]})
		return sendCommand(api.Message{Type: api.TypeSetCampaignStatus, Payload: payload})
	},
}

// sendCommand runs msg through a local dispatcher and prints the reply.
func sendCommand(msg api.Message) error {
	return withManager(func(ctx context.Context, mgr *agent.Manager) error {
		resp, err := mgr.Dispatcher().Handle(ctx, msg)
		if err != nil {
			return err
		}
		if err := printJSON(resp); err != nil {
			return err
		}
		if !resp.Success && !resp.OK {
			return errors.New("command failed")
		}
		return nil
	})
}

func writeCampaigns(w io.Writer, campaigns []shopee.Campaign) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSPENT\tBUDGET\tUSED\tROAS")
	for _, c := range campaigns {
		roas := "-"
		if c.ROAS != nil {
			roas = strconv.FormatFloat(*c.ROAS, 'f', 2, 64)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.1f%%\t%s\n",
			c.ID, c.Title,
			shopee.FormatScaled(c.Spent),
			shopee.FormatScaled(c.DailyBudget),
			c.Percent(), roas)
	}
	tw.Flush()
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the automation settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			s, err := mgr.State().LoadSettings(ctx)
			if err != nil {
				return err
			}
			return printJSON(s)
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key=value ...]",
	Short: "Change settings; unspecified keys keep their value",
	Example: `  autoads settings set mode=combined dailyBudget=25000
  autoads settings set -f settings.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var doc []byte
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read settings file: %w", err)
			}
			doc = data
		} else {
			if len(args) == 0 {
				return errors.New("nothing to set")
			}
			kv, err := assignmentsToYAML(args)
			if err != nil {
				return err
			}
			doc = kv
		}

		patch, err := parsePatch(doc)
		if err != nil {
			return err
		}

		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			s, err := mgr.Dispatcher().UpdateSettings(ctx, patch)
			if err != nil {
				var verrs config.ValidationErrors
				if errors.As(err, &verrs) {
					for _, v := range verrs {
						fmt.Fprintf(os.Stderr, "%s: %s\n", v.Field, v.Message)
					}
					return errors.New("invalid settings")
				}
				return err
			}
			return printJSON(s)
		})
	},
}

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current settings as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			s, err := mgr.State().LoadSettings(ctx)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s)
			if err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			return writeOutput(output, data)
		})
	},
}

// assignmentsToYAML turns key=value arguments into a YAML mapping so values
// get YAML scalar typing.
func assignmentsToYAML(args []string) ([]byte, error) {
	var b bytes.Buffer
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		fmt.Fprintf(&b, "%s: %s\n", key, value)
	}
	return b.Bytes(), nil
}

// parsePatch decodes a YAML settings document into a patch. Unknown keys are
// rejected; lastUpdateTime is ignored so exported files can be re-applied.
func parsePatch(doc []byte) (settings.Patch, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return settings.Patch{}, fmt.Errorf("invalid settings document: %w", err)
	}
	delete(raw, settings.KeyLastUpdateTime)

	data, err := json.Marshal(raw)
	if err != nil {
		return settings.Patch{}, err
	}

	var p settings.Patch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return settings.Patch{}, fmt.Errorf("invalid settings: %w", err)
	}
	return p, nil
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Inspect the persisted error log",
}

var errorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List logged errors, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")

		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			book := mgr.Errors()
			var (
				entries any
				err     error
			)
			switch {
			case since > 0:
				now := time.Now()
				entries, err = book.Between(ctx, now.Add(-since), now)
			case limit > 0:
				entries, err = book.Recent(ctx, limit)
			default:
				entries, err = book.List(ctx)
			}
			if err != nil {
				return err
			}
			return printJSON(entries)
		})
	},
}

var errorsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every logged error",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			if err := mgr.Errors().Clear(ctx); err != nil {
				return err
			}
			fmt.Println("error log cleared")
			return nil
		})
	},
}

var errorsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the error log as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return withManager(func(ctx context.Context, mgr *agent.Manager) error {
			data, err := mgr.Errors().ExportJSON(ctx)
			if err != nil {
				return err
			}
			return writeOutput(output, data)
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the command server",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		scope, _ := cmd.Flags().GetString("scope")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		auth := server.NewAuthenticator(server.AuthConfig{JWTSecret: cfg.Server.JWTSecret})
		token, err := auth.GenerateJWT(subject, scope, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
