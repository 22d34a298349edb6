package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	accept bool
	got    []Event
}

func (f *fakeSubscriber) Name() string { return "fake" }

func (f *fakeSubscriber) Deliver(e Event) bool {
	f.got = append(f.got, e)
	return f.accept
}

type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *countingRecorder) ObserveCycle(string, time.Duration) {}
func (r *countingRecorder) IncBudgetRaise(string)             {}
func (r *countingRecorder) IncNotification(string)            {}
func (r *countingRecorder) IncResetCampaign(string)           {}
func (r *countingRecorder) SetSchedulerEnabled(bool)          {}
func (r *countingRecorder) IncEventPublished(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[status]++
}

func TestBroker_PublishWithoutSubscribers(t *testing.T) {
	b := NewBroker(nil, zap.NewNop())
	assert.NotPanics(t, func() {
		b.Publish(context.Background(), New(TypeCampaignsRefresh, nil))
	})
}

func TestBroker_FansOutAndCountsDrops(t *testing.T) {
	rec := &countingRecorder{events: map[string]int{}}
	ok := &fakeSubscriber{accept: true}
	full := &fakeSubscriber{accept: false}
	b := NewBroker(rec, zap.NewNop(), ok)
	b.Subscribe(full)

	e := New(TypeCampaignUpdated, CampaignUpdate{ID: 1, NewBudget: 15000, Title: "A", Percent: 98})
	b.Publish(context.Background(), e)

	require.Len(t, ok.got, 1)
	require.Len(t, full.got, 1)
	assert.Equal(t, e.ID, ok.got[0].ID)
	assert.Equal(t, 1, rec.events["success"])
	assert.Equal(t, 1, rec.events["dropped"])
}

func TestEvent_JSONShape(t *testing.T) {
	e := New(TypeCampaignUpdated, CampaignUpdate{ID: 9, NewBudget: 15000, Title: "Live", Percent: 98.5})
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "CAMPAIGN_UPDATED", m["type"])
	payload := m["payload"].(map[string]any)
	assert.Equal(t, 9.0, payload["id"])
	assert.Equal(t, 15000.0, payload["newBudget"])
	assert.Equal(t, "Live", payload["title"])
	assert.Equal(t, 98.5, payload["percent"])
}

func TestHub_BroadcastsToClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	assert.True(t, hub.Deliver(New(TypeCampaignsRefresh, []CampaignUpdate{{ID: 1}})))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, TypeCampaignsRefresh, got.Type)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebhook_DeliversQueuedEvents(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	var auth, agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		auth = r.Header.Get("Authorization")
		agent = r.Header.Get("User-Agent")
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	wh := NewWebhook(WebhookConfig{URL: srv.URL, Token: "secret"}, zap.NewNop())
	wh.Start(context.Background())

	assert.True(t, wh.Deliver(New(TypeCampaignUpdated, CampaignUpdate{ID: 3})))
	wh.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], `"CAMPAIGN_UPDATED"`)
	assert.Equal(t, "Bearer secret", auth)
	assert.True(t, strings.HasPrefix(agent, "autoads/"))
}

func TestWebhook_DropsWhenQueueFull(t *testing.T) {
	wh := NewWebhook(WebhookConfig{URL: "http://127.0.0.1:1", QueueSize: 1}, zap.NewNop())

	assert.True(t, wh.Deliver(New(TypeCampaignsRefresh, nil)))
	assert.False(t, wh.Deliver(New(TypeCampaignsRefresh, nil)))
}

func TestWebhook_SendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(WebhookConfig{URL: srv.URL}, zap.NewNop())
	err := wh.send(context.Background(), New(TypeCampaignsRefresh, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
