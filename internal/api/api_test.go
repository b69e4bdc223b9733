package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/health"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/repo"
)

// Wednesday of ISO week 2025-W10.
var testNow = time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	eng := engagement.New(repo.New(docstore.NewMemory()), engagement.Options{
		Now:    func() time.Time { return testNow },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testServer{handler: NewServer(eng, opts).Handler()}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ─── Basics ─────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestReadyz(t *testing.T) {
	ts := newTestServer(t, Options{})
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", nil).Code)

	checker := health.NewChecker(docstore.NewMemory(), "", nil)
	ts = newTestServer(t, Options{Health: checker})
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodGet, "/readyz", nil).Code, "no checks run yet")

	checker.RunOnce(context.Background())
	w := ts.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store"`)
}

func TestCatalog(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(t, http.MethodGet, "/v1/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)

	cat := decode[struct {
		Challenges []domain.ChallengeDef `json:"challenges"`
	}](t, w)
	assert.NotEmpty(t, cat.Challenges)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{EnableMetrics: true})
	ts.do(t, http.MethodGet, "/healthz", nil)

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sunbird_http_requests_total")

	w = newTestServer(t, Options{}).do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, Options{CORSOrigins: []string{"https://app.example"}})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, Options{RateLimit: 0.001, RateBurst: 2})
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)

	w := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decode[errorBody](t, w).Error.Type)
}

// ─── Weekly Challenges ──────────────────────────────────────────────────────

func TestWeekItems(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(t, http.MethodGet, "/v1/users/alice/week?tz=0", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	plan := decode[engagement.WeekPlan](t, w)
	assert.Equal(t, "2025-W10", plan.WeekID)
	require.Len(t, plan.Items, 4) // free: 2 easy + 1 medium open, 1 hard locked

	locked := 0
	for _, it := range plan.Items {
		if !it.Opened {
			locked++
			assert.Equal(t, "Need 40 weekly points", it.LockedReason)
		}
	}
	assert.Equal(t, 1, locked)

	// Same user, same week: same plan.
	again := decode[engagement.WeekPlan](t, ts.do(t, http.MethodGet, "/v1/users/alice/week?tz=0", nil))
	assert.Equal(t, plan, again)
}

func TestWeekItems_BadInput(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(t, http.MethodGet, "/v1/users/alice/week?category=cooking", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_argument", decode[errorBody](t, w).Error.Type)

	w = ts.do(t, http.MethodGet, "/v1/users/alice/week?tz=east", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnlockAndComplete(t *testing.T) {
	ts := newTestServer(t, Options{})
	plan := decode[engagement.WeekPlan](t, ts.do(t, http.MethodGet, "/v1/users/alice/week", nil))

	var open, locked domain.WeeklyItem
	for _, it := range plan.Items {
		if it.Opened && open.ID == "" {
			open = it
		}
		if !it.Opened {
			locked = it
		}
	}
	require.NotEmpty(t, open.ID)
	require.NotEmpty(t, locked.ID)

	body := map[string]any{"pair_id": "p1"}

	// Locked item: no points yet.
	w := ts.do(t, http.MethodPost, "/v1/users/alice/challenges/"+locked.ID+"/complete", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(t, http.MethodPost, "/v1/users/alice/challenges/"+locked.ID+"/unlock", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Complete an open item, then earn enough to unlock.
	w = ts.do(t, http.MethodPost, "/v1/users/alice/challenges/"+open.ID+"/complete", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[domain.WeeklyItem](t, w).Completed)

	w = ts.do(t, http.MethodPost, "/v1/pairs/p1/points", map[string]any{"user_id": "alice", "value": 40})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/users/alice/challenges/"+locked.ID+"/unlock", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[domain.WeeklyItem](t, w).Opened)

	w = ts.do(t, http.MethodPost, "/v1/users/alice/challenges/nope/unlock", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetCompleted(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(t, http.MethodPut, "/v1/users/alice/weeks/2025-W10/challenges/talk-questions/completed",
		map[string]any{"completed": true})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodPut, "/v1/users/alice/weeks/not-a-week/challenges/talk-questions/completed",
		map[string]any{"completed": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─── Points & Weekly Goal ───────────────────────────────────────────────────

func TestWeeklyGoalFlow(t *testing.T) {
	ts := newTestServer(t, Options{DefaultTarget: 50})

	w := ts.do(t, http.MethodPost, "/v1/pairs/p1/weekly/claim", map[string]any{"reward_id": "r1"})
	assert.Equal(t, http.StatusNotFound, w.Code, "claim before ensure")

	w = ts.do(t, http.MethodPost, "/v1/pairs/p1/weekly", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	weekly := decode[domain.Weekly](t, w)
	assert.Equal(t, 50, weekly.Target)
	assert.Equal(t, domain.WeeklyActive, weekly.Status)

	w = ts.do(t, http.MethodPost, "/v1/pairs/p1/weekly/claim", map[string]any{"reward_id": "r1"})
	assert.Equal(t, http.StatusConflict, w.Code, "claim before target met")

	ts.do(t, http.MethodPost, "/v1/pairs/p1/points", map[string]any{"value": 30})
	ts.do(t, http.MethodPost, "/v1/pairs/p1/points", map[string]any{"value": 25})

	w = ts.do(t, http.MethodGet, "/v1/pairs/p1/points", nil)
	assert.Equal(t, float64(55), decode[map[string]any](t, w)["points"])

	weekly = decode[domain.Weekly](t, ts.do(t, http.MethodPost, "/v1/pairs/p1/weekly", nil))
	assert.Equal(t, domain.WeeklyCompleted, weekly.Status)
	assert.Equal(t, 55, weekly.Progress)

	w = ts.do(t, http.MethodPost, "/v1/pairs/p1/weekly/claim", map[string]any{"reward_id": "r1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	weekly = decode[domain.Weekly](t, w)
	assert.Equal(t, 1, weekly.WeeklyStreak)
	assert.Equal(t, "r1", weekly.SelectedRewardID)

	w = ts.do(t, http.MethodGet, "/v1/pairs/p1/weekly/history?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[struct {
		Entries []domain.WeeklyHistoryEntry `json:"entries"`
	}](t, w)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, domain.WeeklyCompleted, hist.Entries[0].Status)
	assert.Equal(t, "r1", hist.Entries[0].RewardID)
}

func TestClaimRequiresReward(t *testing.T) {
	ts := newTestServer(t, Options{})
	w := ts.do(t, http.MethodPost, "/v1/pairs/p1/weekly/claim", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/v1/pairs/p1/points", strings.NewReader(`{"value": "ten"}`))
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─── Streaks ────────────────────────────────────────────────────────────────

func TestStreakEndpoints(t *testing.T) {
	ts := newTestServer(t, Options{})

	view := decode[domain.StreakView](t, ts.do(t, http.MethodGet, "/v1/streaks/alice/", nil))
	assert.Equal(t, 0, view.Current)

	w := ts.do(t, http.MethodPost, "/v1/streaks/alice/completions", map[string]any{"tz_offset_minutes": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[domain.StreakDoc](t, w).Current)

	w = ts.do(t, http.MethodPost, "/v1/streaks/alice/catchup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-W10", decode[domain.StreakDoc](t, w).CatchupIntentWeekID)

	view = decode[domain.StreakView](t, ts.do(t, http.MethodGet, "/v1/streaks/alice/", nil))
	assert.True(t, view.Alive)
	assert.True(t, view.CatchupArmed)
}
