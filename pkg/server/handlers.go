package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/api"
	"github.com/royhairul/auto-ads-shopee/pkg/config"
	"github.com/royhairul/auto-ads-shopee/pkg/errlog"
	"github.com/royhairul/auto-ads-shopee/pkg/health"
	"github.com/royhairul/auto-ads-shopee/pkg/settings"
)

// Commander runs inbound commands and settings updates.
type Commander interface {
	Handle(ctx context.Context, msg api.Message) (api.Response, error)
	UpdateSettings(ctx context.Context, p settings.Patch) (settings.Settings, error)
}

// StatusProvider builds the agent status snapshot.
type StatusProvider interface {
	Status(ctx context.Context) (api.Status, error)
}

// SettingsReader reads the current decision policy.
type SettingsReader interface {
	LoadSettings(ctx context.Context) (settings.Settings, error)
}

// ErrorLog is the persisted error log.
type ErrorLog interface {
	List(ctx context.Context) ([]errlog.Entry, error)
	Recent(ctx context.Context, n int) ([]errlog.Entry, error)
	Between(ctx context.Context, from, to time.Time) ([]errlog.Entry, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	ExportJSON(ctx context.Context) ([]byte, error)
}

// HealthChecker provides health status
type HealthChecker interface {
	IsReady() bool
	GetStatus() *health.Status
}

// Handlers contains the HTTP handlers
type Handlers struct {
	logger   *zap.Logger
	commands Commander
	status   StatusProvider
	settings SettingsReader
	errors   ErrorLog
	health   HealthChecker
}

// NewHandlers creates new handlers
func NewHandlers(logger *zap.Logger, commands Commander, status StatusProvider, reader SettingsReader, errs ErrorLog, hc HealthChecker) *Handlers {
	return &Handlers{
		logger:   logger,
		commands: commands,
		status:   status,
		settings: reader,
		errors:   errs,
		health:   hc,
	}
}

// Healthz handles the liveness probe
func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz handles the readiness probe
func (h *Handlers) Readyz(c *gin.Context) {
	if h.health != nil && !h.health.IsReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"health": h.health.GetStatus(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Health returns every component's last check
func (h *Handlers) Health(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "health monitor not configured"})
		return
	}
	c.JSON(http.StatusOK, h.health.GetStatus())
}

// PostMessage runs one command
func (h *Handlers) PostMessage(c *gin.Context) {
	var msg api.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.commands.Handle(c.Request.Context(), msg)
	if err != nil {
		if errors.Is(err, api.ErrUnknownCommand) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("command failed", zap.String("type", msg.Type), zap.Error(err))
		c.JSON(http.StatusOK, api.Failure(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetStatus returns the agent status
func (h *Handlers) GetStatus(c *gin.Context) {
	st, err := h.status.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to build status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetSettings returns the current settings
func (h *Handlers) GetSettings(c *gin.Context) {
	s, err := h.settings.LoadSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s)
}

// UpdateSettings merges a partial update onto the settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var patch settings.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.commands.UpdateSettings(c.Request.Context(), patch)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field] = fe.Message
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings", "fields": fields})
			return
		}
		h.logger.Error("failed to update settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("settings updated",
		zap.String("mode", string(s.Mode)),
		zap.Float64("budget_threshold", s.BudgetThreshold),
		zap.Int("update_interval", s.UpdateInterval))
	c.JSON(http.StatusOK, s)
}

// ListErrors returns logged errors, newest first. It accepts either
// limit=N or an RFC3339 from/to range.
func (h *Handlers) ListErrors(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		entries []errlog.Entry
		err     error
	)
	switch {
	case c.Query("from") != "" || c.Query("to") != "":
		from, to, perr := parseRange(c.Query("from"), c.Query("to"))
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		entries, err = h.errors.Between(ctx, from, to)
	case c.Query("limit") != "":
		n, perr := strconv.Atoi(c.Query("limit"))
		if perr != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		entries, err = h.errors.Recent(ctx, n)
	default:
		entries, err = h.errors.List(ctx)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	total, err := h.errors.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"errors": entries,
		"total":  total,
	})
}

// ClearErrors empties the error log
func (h *Handlers) ClearErrors(c *gin.Context) {
	if err := h.errors.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("error log cleared")
	c.Status(http.StatusNoContent)
}

// ExportErrors downloads the error log as JSON
func (h *Handlers) ExportErrors(c *gin.Context) {
	data, err := h.errors.ExportJSON(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	name := "autoads-errors-" + time.Now().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

func parseRange(rawFrom, rawTo string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now()
	var err error
	if rawFrom != "" {
		if from, err = time.Parse(time.RFC3339, rawFrom); err != nil {
			return from, to, errors.New("from must be RFC3339")
		}
	}
	if rawTo != "" {
		if to, err = time.Parse(time.RFC3339, rawTo); err != nil {
			return from, to, errors.New("to must be RFC3339")
		}
	}
	return from, to, nil
}
