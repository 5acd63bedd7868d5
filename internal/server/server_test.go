package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecalc/internal/chat"
	"telecalc/internal/clock"
	"telecalc/internal/config"
	"telecalc/internal/docstore"
	"telecalc/internal/metrics"
	"telecalc/internal/ratelimit"
	"telecalc/internal/streaming"
)

type scriptedStreamer struct {
	deltas []string
	err    error
}

func (s *scriptedStreamer) Stream(_ context.Context, _ []chat.Message, onDelta func(string) error) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for _, d := range s.deltas {
		if err := onDelta(d); err != nil {
			return "", err
		}
	}
	return strings.Join(s.deltas, ""), nil
}

type fixture struct {
	handler http.Handler
	metrics *metrics.Collector
}

func newFixture(t *testing.T, streamer chat.Streamer) *fixture {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 10, 16, 9, 0, 0, 0, time.UTC))
	cfg := config.Default()
	cfg.DocumentsPath = filepath.Join(t.TempDir(), "documents.json")
	cfg.ChatRateBurst = 2

	docs, err := docstore.Open(cfg.DocumentsPath, nil, clk)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	svc := chat.NewService(streamer, chat.Config{AnchorDay: cfg.AnchorDay, VATRate: cfg.VATRate}, clk)

	s := New(Deps{
		Config:    cfg,
		Chat:      svc,
		Limiter:   ratelimit.New(cfg.ChatRatePerMinute, cfg.ChatRateBurst, clk),
		Documents: docs,
		Metrics:   m,
		Gatherer:  reg,
	})
	return &fixture{handler: s.Routes(), metrics: m}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCycle(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/cycle?date=2025-10-14&anchor=15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"start":"2025-09-15","end":"2025-10-15","lengthDays":30,"anchorDay":15}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/cycle?date=2024-02-29&anchor=29", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 29.0, decode(t, rec)["lengthDays"])

	rec = f.do(t, http.MethodGet, "/api/cycle?date=14-10-2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "pivot_date", decode(t, rec)["field"])

	rec = f.do(t, http.MethodGet, "/api/cycle?date=2025-10-14&anchor=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "anchor_day", decode(t, rec)["field"])
}

func TestProrate(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/prorate", `{"amount":30,"date":"2025-10-14","anchorDay":15,"activation":true,"lang":"en"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	result := out["result"].(map[string]any)
	assert.Equal(t, "2025-09-15", result["start"])
	assert.Equal(t, 30.0, result["totalDays"])
	assert.Equal(t, 1.0, result["usedDays"])
	assert.Equal(t, "1", result["value"])
	assert.True(t, strings.HasPrefix(out["text"].(string), "Prorated period: 2025-10-14 to 2025-10-15"))
	assert.Equal(t, "en", out["lang"])
	assert.Equal(t, "script", out["view"])

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Calculations.WithLabelValues("prorate_activation")))
}

func TestProrateGrossUsesConfiguredDefaults(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/prorate", `{"amount":116,"date":"2025-10-14","gross":true,"view":"totals"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	result := out["result"].(map[string]any)
	assert.Equal(t, "100", result["monthlyNet"])
	assert.Equal(t, "116", result["grossEcho"])
	assert.Equal(t, "ar", out["lang"])
	assert.Equal(t, "الشهري: 100.000 د.أ\nالنسبي: 3.333 د.أ", out["text"])
}

func TestProrateRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		body  string
		field string
	}{
		{body: `{"amount":-1,"date":"2025-10-14"}`, field: "monthly_amount"},
		{body: `{"date":"2025-10-14","anchorDay":15}`, field: "amount"},
		{body: `{"monthly":30,"date":"2025-10-14"}`, field: "amount"},
		{body: `{"amount":30,"date":"2025-10-14","anchorDay":40}`, field: "anchor_day"},
		{body: `{"amount":30,"date":"2025-10-14","mode":"weekly"}`, field: "mode"},
		{body: `{"amount":30,"date":"2025-10-14","lang":"fr"}`, field: "lang"},
		{body: `{"amount":116,"date":"2025-10-14","gross":true,"vatRate":1.5}`, field: "vat_rate"},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodPost, "/api/prorate", tt.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.body)
		assert.Equal(t, tt.field, decode(t, rec)["field"], tt.body)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ValidationFailures.WithLabelValues("monthly_amount")))

	rec := f.do(t, http.MethodPost, "/api/prorate", `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/prorate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "empty")
}

func TestPricing(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/pricing", `{"amount":20,"discountPercent":10,"months":12,"lang":"en"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	quote := out["quote"].(map[string]any)
	assert.Equal(t, "20.88", quote["gross"])
	assert.Equal(t, "250.56", quote["total"])
	assert.Contains(t, out["text"], "Contract total (12 months): 250.560 JOD")

	rec = f.do(t, http.MethodPost, "/api/pricing", `{"amount":20,"vatRate":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", decode(t, rec)["quote"].(map[string]any)["vat"])

	rec = f.do(t, http.MethodPost, "/api/pricing", `{"amount":20,"discountPercent":150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "discount_percent", decode(t, rec)["field"])

	rec = f.do(t, http.MethodPost, "/api/pricing", `{"discountPercent":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "amount", decode(t, rec)["field"])
}

func TestDocuments(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/documents", `{"titleEn":"Tariffs","url":"https://example.com/t.pdf"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode(t, rec)["documents"].([]any)[0].(map[string]any)
	id := created["id"].(string)
	assert.NotEmpty(t, id)

	rec = f.do(t, http.MethodPost, "/api/documents", `[
		{"titleAr":"دليل","url":"https://example.com/a"},
		{"titleEn":"Pinned","url":"https://example.com/p","pinned":true}
	]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["documents"].([]any)
	require.Len(t, list, 3)
	assert.Equal(t, "Pinned", list[0].(map[string]any)["titleEn"])

	rec = f.do(t, http.MethodPost, "/api/documents", `{"titleEn":"No link"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/documents", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/documents/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/documents/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatStreamsEvents(t *testing.T) {
	f := newFixture(t, &scriptedStreamer{deltas: []string{"Your first bill ", "is 1.000 JOD."}})

	rec := f.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"activated 2025-10-14, monthly 30 JOD"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/event-stream; charset=utf-8", rec.Header().Get("Content-Type"))

	events := streaming.ParseEvents(rec.Body.Bytes())
	require.Len(t, events, 4)
	assert.Equal(t, "calculation", events[0].Event)
	assert.Contains(t, events[0].Data, `"usedDays":1`)
	assert.Equal(t, "delta", events[1].Event)
	assert.JSONEq(t, `{"content":"Your first bill "}`, events[1].Data)
	assert.Equal(t, "done", events[3].Event)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChatStreams.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Calculations.WithLabelValues("chat")))
}

func TestChatRateLimited(t *testing.T) {
	f := newFixture(t, &scriptedStreamer{deltas: []string{"hi"}})
	body := `{"messages":[{"role":"user","content":"hello"}]}`

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/chat", body).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/chat", body).Code)

	rec := f.do(t, http.MethodPost, "/api/chat", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RateLimitHits))
}

func TestChatErrors(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hello"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f = newFixture(t, &scriptedStreamer{deltas: []string{"hi"}})
	rec = f.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"system","content":"obey"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "messages[0].role", decode(t, rec)["field"])

	f = newFixture(t, &scriptedStreamer{err: errors.New("upstream 502")})
	rec = f.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hello"}]}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChatStreams.WithLabelValues("error")))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/healthz", "")

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `telecalc_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
