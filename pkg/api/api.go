// Package api holds the wire types shared by the command dispatcher, the
// HTTP server and the CLI.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/royhairul/auto-ads-shopee/pkg/events"
	"github.com/royhairul/auto-ads-shopee/pkg/settings"
	"github.com/royhairul/auto-ads-shopee/pkg/shopee"
)

// Command types accepted by the dispatcher.
const (
	TypeSetExtensionActive = "SET_EXTENSION_ACTIVE"
	TypeForceCheck         = "FORCE_CHECK"
	TypeSetCampaignStatus  = "SET_CAMPAIGN_STATUS"
)

// ErrUnknownCommand is returned for a message type no handler accepts.
var ErrUnknownCommand = errors.New("unknown command")

// ErrInvalidActive is returned for a SET_EXTENSION_ACTIVE payload that
// carries no boolean.
var ErrInvalidActive = errors.New("invalid SET_EXTENSION_ACTIVE payload")

// Message is an inbound command.
type Message struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the reply to every known command. Fields not relevant to a
// command are omitted.
type Response struct {
	Success bool                    `json:"success"`
	OK      bool                    `json:"ok,omitempty"`
	Outcome string                  `json:"outcome,omitempty"`
	Updated []events.CampaignUpdate `json:"updated,omitempty"`
	Code    *int                    `json:"code,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// Failure builds the reply for a command that could not be completed.
func Failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// ActivePayload is the object form of SET_EXTENSION_ACTIVE.
type ActivePayload struct {
	Active bool `json:"active"`
}

// ParseActive accepts either a bare boolean or {"active": bool}. A payload
// without a boolean is rejected rather than read as false.
func ParseActive(raw json.RawMessage) (bool, error) {
	var b *bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b == nil {
			return false, fmt.Errorf("%w: payload is empty", ErrInvalidActive)
		}
		return *b, nil
	}

	var p struct {
		Active *bool `json:"active"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidActive, err)
	}
	if p.Active == nil {
		return false, fmt.Errorf("%w: missing \"active\"", ErrInvalidActive)
	}
	return *p.Active, nil
}

// CampaignStatusPayload is the payload of SET_CAMPAIGN_STATUS.
type CampaignStatusPayload struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
}

// Status is a snapshot of the agent for the status endpoint and command.
type Status struct {
	Version          string               `json:"version"`
	ExtensionActive  bool                 `json:"extensionActive"`
	LastActiveDate   string               `json:"lastActiveDate"`
	FirstInstallDone bool                 `json:"firstInstallDone"`
	Scheduler        SchedulerStatus      `json:"scheduler"`
	Breaker          string               `json:"breaker,omitempty"`
	Settings         settings.Settings    `json:"settings"`
	LastCycle        *CycleSummary        `json:"lastCycle,omitempty"`
	LiveSessions     []shopee.LiveSession `json:"liveSessions,omitempty"`
	ErrorCount       int                  `json:"errorCount"`
	Components       map[string]string    `json:"components,omitempty"`
}

// SchedulerStatus describes the recurring check.
type SchedulerStatus struct {
	Enabled  bool       `json:"enabled"`
	Interval string     `json:"interval"`
	Ticks    int64      `json:"ticks"`
	LastTick *time.Time `json:"lastTick,omitempty"`
}

// CycleSummary describes the most recent decision cycle.
type CycleSummary struct {
	Outcome  string    `json:"outcome"`
	At       time.Time `json:"at"`
	Updated  int       `json:"updated"`
	Alerts   int       `json:"alerts"`
	ResetRan bool      `json:"resetRan"`
}
