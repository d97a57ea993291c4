package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/engine"
	"github.com/arogya-labs/rxguard/internal/kb"
	"github.com/arogya-labs/rxguard/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubSource struct {
	records map[string]*model.InteractionRecord
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Lookup(_ context.Context, pair model.Pair) (*model.InteractionRecord, error) {
	return s.records[pair.Key()], nil
}

type stubStatsStore struct {
	kb.Store
	stats kb.Stats
}

func (s *stubStatsStore) Stats(context.Context) (*kb.Stats, error) {
	return &s.stats, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	pair, ok := model.NewPair("clopidogrel", "pantoprazole")
	require.True(t, ok)
	src := &stubSource{records: map[string]*model.InteractionRecord{
		pair.Key(): {Pair: pair, Severity: model.SeverityModerate, Source: "local"},
	}}
	store := &stubStatsStore{stats: kb.Stats{Pairs: 1, Drugs: 2}}
	return NewServer(engine.New(src), store).Router(1000)
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCheckEndpoint(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodPost, "/v1/interactions/check",
		`{"drugs":["Clopidogrel","Pantoprazole"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.AggregateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.PairsChecked)
	assert.Equal(t, 1, result.Counts.Moderate)
	require.NotNil(t, result.Safe)
	assert.True(t, *result.Safe)
}

func TestCheckEndpointBadBody(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodPost, "/v1/interactions/check", `{"drugs": "oops"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMultiEndpoint(t *testing.T) {
	body := `{"prescriptions":[
		{"source":"dr-mehta","medications":[{"name":"Clopidogrel","dose":"75 mg","slots":["morning"]}]},
		{"source":"dr-rao","medications":[{"name":"Pantoprazole","dose":"40 mg","slots":["morning"]}]}
	]}`
	rec := doJSON(t, newTestRouter(t), http.MethodPost, "/v1/interactions/multi", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.MultiResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Aggregate.Findings, 1)
	assert.True(t, result.Aggregate.Findings[0].CrossSource)
	assert.Len(t, result.Schedule[model.SlotMorning], 2)
}

func TestMultiEndpointEmpty(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodPost, "/v1/interactions/multi", `{"prescriptions":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDosesEndpoint(t *testing.T) {
	body := `{"prescription":{"source":"dr-mehta","medications":[
		{"name":"Amlodipine","dose":"50 mg","slots":["morning"]}
	]},"patient":{"age":40}}`
	rec := doJSON(t, newTestRouter(t), http.MethodPost, "/v1/doses/check", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Reports []struct {
			Medication string `json:"medication"`
			HasAnomaly bool   `json:"has_anomaly"`
			Level      string `json:"level"`
		} `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Reports, 1)
	assert.True(t, result.Reports[0].HasAnomaly)
	assert.Equal(t, "danger", result.Reports[0].Level)
}

func TestStatsEndpoint(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/v1/kb/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats kb.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Pairs)
	assert.Equal(t, 2, stats.Drugs)
}

func TestMetricsExposed(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rxguard")
}

func TestRateLimitExceeded(t *testing.T) {
	// Burst capacity is 10x the per-second rate, so 15 immediate
	// requests at rate 1 must hit the limit.
	limited := NewServer(nil, &stubStatsStore{}).Router(1)
	var got429 bool
	for i := 0; i < 15; i++ {
		rec := doJSON(t, limited, http.MethodGet, "/v1/kb/stats", "")
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			break
		}
	}
	assert.True(t, got429, "burst exhaustion returns 429")
}

func TestRateLimitExemptsHealth(t *testing.T) {
	router := NewServer(nil, &stubStatsStore{}).Router(1)
	for i := 0; i < 30; i++ {
		rec := doJSON(t, router, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/interactions/check", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSchedulePayloadShape(t *testing.T) {
	// The schedule marshals slot names as keys so clients can render
	// fixed rows without scanning entries.
	sched := model.Schedule{
		model.SlotMorning: []model.ScheduleEntry{{Drug: "aspirin", Name: "Aspirin", Dose: "81 mg", Source: "dr-mehta"}},
	}
	raw, err := json.Marshal(sched)
	require.NoError(t, err)
	assert.Contains(t, string(raw), fmt.Sprintf("%q", model.SlotMorning))
}
