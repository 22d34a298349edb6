package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSink struct {
	name string
	err  error
	got  []Notification
}

func (s *captureSink) Name() string { return s.name }

func (s *captureSink) Send(_ context.Context, n Notification) error {
	s.got = append(s.got, n)
	return s.err
}

func TestTemplates_Defaults(t *testing.T) {
	tpl, err := LoadTemplates("")
	require.NoError(t, err)

	msg, err := tpl.Render(TemplateLowEffectiveness, map[string]any{
		"title":     "Live Sale",
		"roas":      10.0,
		"threshold": 20.0,
	})
	require.NoError(t, err)
	assert.Equal(t, `Campaign "Live Sale" has a ROAS of only 10.00, below 20. Consider optimizing it.`, msg)

	msg, err = tpl.Render(TemplateBudgetThreshold, map[string]any{
		"title":      "Live Sale",
		"percent":    98.0,
		"new_budget": decimal.NewFromInt(1250000),
	})
	require.NoError(t, err)
	assert.Contains(t, msg, "reached 98.0%")
	assert.Contains(t, msg, "Rp1.250.000")

	msg, err = tpl.Render(TemplateBudgetInterval, map[string]any{
		"title":       "Live Sale",
		"new_budget":  int64(15000),
		"next_update": time.Date(2025, 1, 1, 14, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, msg, "Rp15.000")
	assert.Contains(t, msg, "14:30")
}

func TestTemplates_Override(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplateBudgetThreshold+".tpl"), []byte("raised {{ title }}"), 0644))

	tpl, err := LoadTemplates(dir)
	require.NoError(t, err)

	msg, err := tpl.Render(TemplateBudgetThreshold, map[string]any{"title": "A"})
	require.NoError(t, err)
	assert.Equal(t, "raised A", msg)
}

func TestTemplates_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplateBudgetInterval+".tpl"), []byte("{% if %}"), 0644))

	_, err := LoadTemplates(dir)
	assert.Error(t, err)

	tpl, err := LoadTemplates("")
	require.NoError(t, err)
	_, err = tpl.Render("missing", nil)
	assert.Error(t, err)
}

func TestDispatcher_FansOutAndJoinsErrors(t *testing.T) {
	tpl, err := LoadTemplates("")
	require.NoError(t, err)

	ok := &captureSink{name: "ok"}
	bad := &captureSink{name: "bad", err: errors.New("boom")}
	d := NewDispatcher(tpl, zap.NewNop(), ok, bad)
	d.AddSink(NewLogSink(zap.NewNop()))

	err = d.Notify(context.Background(), Alert{
		Kind:       KindLowEffectiveness,
		Template:   TemplateLowEffectiveness,
		Title:      TitleLowEffectiveness,
		CampaignID: 7,
		Vars:       map[string]any{"title": "A", "roas": 1.5, "threshold": 20},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")

	require.Len(t, ok.got, 1)
	require.Len(t, bad.got, 1)
	n := ok.got[0]
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, KindLowEffectiveness, n.Kind)
	assert.Equal(t, TitleLowEffectiveness, n.Title)
	assert.Equal(t, int64(7), n.CampaignID)
	assert.Contains(t, n.Message, "1.50")
}

func TestDispatcher_RenderFailureSendsNothing(t *testing.T) {
	tpl, err := LoadTemplates("")
	require.NoError(t, err)

	sink := &captureSink{name: "ok"}
	d := NewDispatcher(tpl, zap.NewNop(), sink)

	err = d.Notify(context.Background(), Alert{Kind: KindBudgetRaised, Template: "nope"})
	assert.Error(t, err)
	assert.Empty(t, sink.got)
}

func TestTelegramSink_Send(t *testing.T) {
	var path string
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var m map[string]any
			_ = json.Unmarshal(body, &m)
			form = url.Values{}
			for k, v := range m {
				if s, ok := v.(string); ok {
					form.Set(k, s)
				}
			}
		} else {
			form, _ = url.ParseQuery(string(body))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer srv.Close()

	sink, err := NewTelegramSink("123:abc", 42, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "telegram", sink.Name())

	err = sink.Send(context.Background(), Notification{Title: "Low <ads>", Message: "ROAS 1 & falling"})
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", form.Get("chat_id"))
	assert.Equal(t, "<b>Low &lt;ads&gt;</b>\nROAS 1 &amp; falling", form.Get("text"))
	assert.Equal(t, "HTML", form.Get("parse_mode"))
}

func TestTelegramSink_CanceledContext(t *testing.T) {
	sink, err := NewTelegramSink("123:abc", 42, "http://127.0.0.1:1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Send(ctx, Notification{}), context.Canceled)
}
