package shopee

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopSleep(context.Context, time.Duration) error { return nil }

type recordedErr struct {
	err  error
	info map[string]any
}

type fakeRecorder struct {
	records []recordedErr
}

func (f *fakeRecorder) Record(_ context.Context, err error, info map[string]any) {
	f.records = append(f.records, recordedErr{err: err, info: info})
}

func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	cfg := Config{
		SellerURL:  serverURL,
		AccountURL: serverURL,
		CreatorURL: serverURL,
		Cookie:     "SPC_EC=abc",
		SPCCDS:     "test-cds",
		Retry:      RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		Location:   time.UTC,
	}
	opts = append([]Option{WithSleepFunc(noopSleep)}, opts...)
	return NewClient(cfg, nil, opts...)
}

func TestGetProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathAccountInfo, r.URL.Path)
		assert.Equal(t, "SPC_EC=abc", r.Header.Get("Cookie"))
		w.Write([]byte(`{"data":{"userid":9,"username":"toko","shopid":77,"is_seller":true}}`))
	}))
	defer server.Close()

	p, err := newTestClient(t, server.URL).GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.UserID)
	assert.Equal(t, int64(77), p.ShopID)
	assert.True(t, p.IsSeller)
}

func TestGetProfile_NoDataIsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":19,"data":null}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).GetProfile(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetAccountBalanceAndSpend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-cds", r.URL.Query().Get("SPC_CDS"))
		assert.Equal(t, "2", r.URL.Query().Get("SPC_CDS_VER"))

		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["info_type_list"], "ads_credit")

		w.Write([]byte(`{"code":0,"data":{"ads_expense":{"ads_expense_today":1200000},"ads_credit":{"app_detail":{"live_available_balance":5000000000}}}}`))
	}))
	defer server.Close()

	s, err := newTestClient(t, server.URL).GetAccountBalanceAndSpend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5000000000), s.AccountBalance)
	assert.Equal(t, int64(1200000), s.ExpenseToday)
}

func TestGetCampaignList_MapsEntriesAndRefreshesSpend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(pathHomepage, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			StartTime  int64            `json:"start_time"`
			EndTime    int64            `json:"end_time"`
			FilterList []map[string]any `json:"filter_list"`
			Limit      int              `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(86399), body.EndTime-body.StartTime)
		assert.Equal(t, "ongoing", body.FilterList[0]["state"])
		assert.Equal(t, 20, body.Limit)

		w.Write([]byte(`{"code":0,"data":{"entry_list":[
			{"campaign":{"campaign_id":1,"daily_budget":1000000000},"title":"Live Sore","state":"ongoing","report":{"cost":200000000,"broad_gmv":5000000000}},
			{"campaign":{"campaign_id":2,"daily_budget":0},"state":"paused","report":{"cost":0,"broad_gmv":0}}
		]}}`))
	})
	mux.HandleFunc(pathBudgetData, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CampaignIDList []int64 `json:"campaign_id_list"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []int64{1}, body.CampaignIDList)
		w.Write([]byte(`{"code":0,"data":{"daily_budget":{"min":500000000,"previous_expense":990000000}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	now := time.Date(2026, 10, 17, 14, 0, 0, 0, time.UTC)
	campaigns, err := newTestClient(t, server.URL, WithNow(func() time.Time { return now })).
		GetCampaignList(context.Background(), StateOngoing)
	require.NoError(t, err)
	require.Len(t, campaigns, 2)

	first := campaigns[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "Live Sore", first.Title)
	assert.Equal(t, int64(990000000), first.Spent)
	require.NotNil(t, first.ROAS)
	assert.InDelta(t, 25.0, *first.ROAS, 0.0001)

	second := campaigns[1]
	assert.Equal(t, "Untitled Campaign", second.Title)
	assert.Equal(t, StatePaused, second.State)
	assert.Nil(t, second.ROAS)
	assert.Zero(t, second.Percent())
}

func TestGetCampaignMinimumBudget(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantNil bool
		wantMin int64
	}{
		{"reported", `{"code":0,"data":{"daily_budget":{"min":500000000,"max":1000000000000,"cps":{"min_budget":100}}}}`, false, 500000000},
		{"zero minimum", `{"code":0,"data":{"daily_budget":{"min":0}}}`, true, 0},
		{"no budget", `{"code":0,"data":{}}`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			limits, err := newTestClient(t, server.URL).GetCampaignMinimumBudget(context.Background(), 5)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, limits)
				return
			}
			require.NotNil(t, limits)
			assert.Equal(t, tt.wantMin, limits.Min)
		})
	}
}

func TestGetActiveLiveSessions_FiltersLive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathSessionList, r.URL.Path)
		w.Write([]byte(`{"code":0,"data":{"list":[
			{"sessionId":11,"title":"Flash Sale","status":1,"placedSales":3000,"viewers":120},
			{"sessionId":12,"title":"Ended","status":2}
		]}}`))
	}))
	defer server.Close()

	sessions, err := newTestClient(t, server.URL).GetActiveLiveSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "https://creator.shopee.co.id/dashboard/live/11", sessions[0].Link)
	assert.Equal(t, int64(120), sessions[0].Views)
}

func TestGetActiveLiveSessions_FailureIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	rec := &fakeRecorder{}
	sessions, err := newTestClient(t, server.URL, WithErrorRecorder(rec)).GetActiveLiveSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
	require.Len(t, rec.records, 1)
	assert.Equal(t, "getActiveLiveSessions", rec.records[0].info["function"])
}

func TestSetDailyBudget_ScalesToPlatformUnits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathLiveStreamEdit, r.URL.Path)

		var body struct {
			CampaignID   int64  `json:"campaign_id"`
			Type         string `json:"type"`
			ChangeBudget struct {
				Page        string `json:"page"`
				DailyBudget int64  `json:"daily_budget"`
			} `json:"change_budget"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(1), body.CampaignID)
		assert.Equal(t, "change_budget", body.Type)
		assert.Equal(t, "page_homepage", body.ChangeBudget.Page)
		assert.Equal(t, int64(1000500000), body.ChangeBudget.DailyBudget)

		w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer server.Close()

	res, err := newTestClient(t, server.URL).SetDailyBudget(context.Background(), 1, decimal.NewFromInt(10005))
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestSetCampaignStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"campaign_id":3,"type":"pause","header":{}}`, string(raw))
		w.Write([]byte(`{"code":1001,"msg":"not allowed"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	res, err := c.SetCampaignStatus(context.Background(), 3, ActionPause)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, 1001, res.Code)

	_, err = c.SetCampaignStatus(context.Background(), 3, "archive")
	assert.Error(t, err)
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"code":0}`))
	}))
	defer server.Close()

	res, err := newTestClient(t, server.URL).SetDailyBudget(context.Background(), 1, decimal.NewFromInt(5000))
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_RateLimitedAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).SetDailyBudget(context.Background(), 1, decimal.NewFromInt(5000))
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestDo_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).GetProfile(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_BreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c.SetDailyBudget(ctx, 1, decimal.NewFromInt(5000))
	}

	assert.True(t, c.BreakerOpen())
	_, err := c.SetDailyBudget(ctx, 1, decimal.NewFromInt(5000))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
