// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package server

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/config"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/history"
)

var testItems = []string{"[PAD]", "a", "b", "c", "d", "e"}

// idPredictor scores every item by its internal id.
type idPredictor struct{}

func (idPredictor) Info() recommend.DataInfo {
	return recommend.DataInfo{NItems: len(testItems), MaxSeqLength: 4}
}

func (idPredictor) PredictFullCatalog(batch *recommend.Batch) (*mat.Dense, error) {
	out := mat.NewDense(batch.Size(), len(testItems), nil)
	for i := 0; i < batch.Size(); i++ {
		for j := range testItems {
			out.Set(i, j, float64(j))
		}
	}
	return out, nil
}

type memHistory struct {
	mu sync.Mutex
	m  map[string][]string
}

func newMemHistory() *memHistory { return &memHistory{m: map[string][]string{}} }

func (h *memHistory) Get(_ context.Context, user string) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	items, ok := h.m[user]
	if !ok {
		return nil, history.ErrUserNotFound
	}
	return append([]string(nil), items...), nil
}

func (h *memHistory) Put(_ context.Context, user string, items []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.m[user] = append([]string(nil), items...)
	return nil
}

func (h *memHistory) Append(_ context.Context, user string, items ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.m[user] = append(h.m[user], items...)
	return nil
}

type fixture struct {
	engine  *recommend.Engine
	history *memHistory
	handler http.Handler
}

func newFixture(t *testing.T, loaded bool, mutate func(*config.ServerConfig)) *fixture {
	t.Helper()
	engine, err := recommend.NewEngine(recommend.DefaultEngineConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	hist := newMemHistory()
	engine.SetHistoryLookup(hist)
	if loaded {
		if err := engine.Swap(idPredictor{}, testItems, 1); err != nil {
			t.Fatalf("Swap() error = %v", err)
		}
	}
	cfg := config.Default().Server
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return &fixture{engine: engine, history: hist, handler: New(cfg, engine, hist, zerolog.Nop()).Handler()}
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *APIError `json:"error"`
	Meta    *APIMeta  `json:"meta"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func itemIDs(resp recommend.Response) []string {
	out := make([]string, len(resp.Items))
	for i, it := range resp.Items {
		out[i] = it.ItemID
	}
	return out
}

func TestRecommend(t *testing.T) {
	f := newFixture(t, true, nil)
	if err := f.history.Put(context.Background(), "u1", []string{"c"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"history excluded", `{"items":["a","b"],"k":2}`, []string{"e", "d"}},
		{"history included", `{"items":["a","b"],"k":3,"include_history":true}`, []string{"e", "d", "c"}},
		{"caller exclusions", `{"items":["a"],"k":2,"exclude":["e"]}`, []string{"d", "c"}},
		{"stored history", `{"user_id":"u1","k":2}`, []string{"e", "d"}},
		{"default k covers catalog", `{"items":["e"]}`, []string{"d", "c", "b", "a"}},
		{"unknown items skipped", `{"items":["zzz","a"],"k":1}`, []string{"e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/v1/recommendations", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			env := decode[recommend.Response](t, rec)
			if !env.Success {
				t.Fatalf("success = false: %+v", env.Error)
			}
			if diff := cmp.Diff(tt.want, itemIDs(env.Data)); diff != "" {
				t.Errorf("items mismatch (-want +got):\n%s", diff)
			}
			if env.Data.Metadata.ModelVersion != 1 {
				t.Errorf("model_version = %d, want 1", env.Data.Metadata.ModelVersion)
			}
		})
	}
}

func TestRecommendErrors(t *testing.T) {
	tests := []struct {
		name   string
		loaded bool
		body   string
		status int
		code   string
	}{
		{"no model", false, `{"items":["a"]}`, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"unknown user", true, `{"user_id":"ghost"}`, http.StatusNotFound, ErrCodeNotFound},
		{"only unknown items", true, `{"items":["zzz"]}`, http.StatusUnprocessableEntity, ErrCodeUnprocessable},
		{"malformed json", true, `{"items":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"empty body", true, ``, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown field", true, `{"items":["a"],"limit":3}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"neither user nor items", true, `{"k":3}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"negative k", true, `{"items":["a"],"k":-1}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"empty item id", true, `{"items":["a",""]}`, http.StatusBadRequest, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.loaded, nil)
			rec := f.do(http.MethodPost, "/api/v1/recommendations", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			env := decode[any](t, rec)
			if env.Success || env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t, false, nil)
	if rec := f.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz before load status = %d, want 503", rec.Code)
	}

	if err := f.engine.Swap(idPredictor{}, testItems, 7); err != nil {
		t.Fatal(err)
	}
	rec := f.do(http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/readyz after load status = %d", rec.Code)
	}
	want := HealthResponse{Status: "ok", ModelReady: true, ModelVersion: 7}
	if diff := cmp.Diff(want, decode[HealthResponse](t, rec).Data); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}
}

func TestModelStats(t *testing.T) {
	f := newFixture(t, true, nil)
	f.do(http.MethodPost, "/api/v1/recommendations", `{"items":["a"]}`)
	rec := f.do(http.MethodGet, "/api/v1/model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stats := decode[recommend.EngineStats](t, rec).Data
	if stats.Requests != 1 || stats.ModelVersion != 1 || stats.NItems != len(testItems) {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCompression(t *testing.T) {
	f := newFixture(t, true, nil)
	rec := f.do(http.MethodGet, "/api/v1/model", "", "Accept-Encoding", "gzip")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	var body envelope[recommend.EngineStats]
	if err := json.NewDecoder(zr).Decode(&body); err != nil {
		t.Fatalf("decode gzip body: %v", err)
	}
	if !body.Success || body.Data.ModelVersion != 1 {
		t.Errorf("body = %+v", body)
	}

	plain := f.do(http.MethodGet, "/api/v1/model", "")
	if got := plain.Header().Get("Content-Encoding"); got != "" {
		t.Errorf("Content-Encoding without Accept-Encoding = %q", got)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t, true, nil)
	path := "/api/v1/users/u9/history"

	if rec := f.do(http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET before write status = %d, want 404", rec.Code)
	}
	if rec := f.do(http.MethodPut, path, `{"items":["a","b"]}`); rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec := f.do(http.MethodPost, path, `{"items":["c"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body.String())
	}
	want := HistoryResponse{UserID: "u9", Items: []string{"a", "b", "c"}}
	if diff := cmp.Diff(want, decode[HistoryResponse](t, rec).Data); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if rec := f.do(http.MethodPost, path, `{"items":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty append status = %d, want 400", rec.Code)
	}

	rec = f.do(http.MethodPost, "/api/v1/recommendations", `{"user_id":"u9","k":1}`)
	if got := itemIDs(decode[recommend.Response](t, rec).Data); !cmp.Equal(got, []string{"e"}) {
		t.Errorf("recommendation from stored history = %v, want [e]", got)
	}
}

func TestHistoryRoutesNeedStore(t *testing.T) {
	engine, err := recommend.NewEngine(recommend.DefaultEngineConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	h := New(config.Default().Server, engine, nil, zerolog.Nop()).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/history", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	f := newFixture(t, true, nil)
	rec := f.do(http.MethodGet, "/healthz", "", RequestIDHeader, "req-123")
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("response header = %q, want req-123", got)
	}
	if env := decode[HealthResponse](t, rec); env.Meta == nil || env.Meta.RequestID != "req-123" {
		t.Errorf("meta = %+v, want request id req-123", env.Meta)
	}

	rec = f.do(http.MethodGet, "/healthz", "")
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("a request id should be generated when none is sent")
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, true, func(c *config.ServerConfig) { c.RateLimit = 2 })
	for i := 0; i < 2; i++ {
		if rec := f.do(http.MethodGet, "/api/v1/model", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := f.do(http.MethodGet, "/api/v1/model", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if env := decode[any](t, rec); env.Error == nil || env.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("error = %+v", env.Error)
	}
	if rec := f.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("health checks are not rate limited, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	f := newFixture(t, true, func(c *config.ServerConfig) { c.CORSOrigins = []string{"https://app.example"} })
	rec := f.do(http.MethodGet, "/healthz", "", "Origin", "https://app.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("allowed origin header = %q", got)
	}
	rec = f.do(http.MethodGet, "/healthz", "", "Origin", "https://evil.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got header %q", got)
	}

	noCORS := newFixture(t, true, nil)
	rec = noCORS.do(http.MethodGet, "/healthz", "", "Origin", "https://app.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("CORS header %q set without configured origins", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, true, nil)
	f.do(http.MethodPost, "/api/v1/recommendations", `{"items":["a"]}`)
	rec := f.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"cclsrec_api_requests_total", "cclsrec_recommendations_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output lacks %s", name)
		}
	}
}

func TestNotFoundAndMethod(t *testing.T) {
	f := newFixture(t, true, nil)
	if rec := f.do(http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/v1/recommendations", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d", rec.Code)
	}
}

func TestHTTPServer(t *testing.T) {
	engine, err := recommend.NewEngine(recommend.DefaultEngineConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default().Server
	cfg.Addr = "127.0.0.1:9999"
	cfg.ReadTimeout = 3 * time.Second
	srv := New(cfg, engine, nil, zerolog.Nop()).HTTPServer()
	if srv.Addr != cfg.Addr || srv.ReadTimeout != 3*time.Second || srv.Handler == nil {
		t.Errorf("http.Server = %+v", srv)
	}
}
