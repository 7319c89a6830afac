package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/latest"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeLatest struct {
	res latest.Result
	err error
}

func (f fakeLatest) Get(context.Context) (latest.Result, error) { return f.res, f.err }

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, nil), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_RequestIDIsEchoed(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	NewServer(nil, nil, nil).Handler().ServeHTTP(rec, req)

	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_ReadyzReportsLatest(t *testing.T) {
	t.Parallel()

	fetched := time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)
	cache := fakeLatest{res: latest.Result{
		Record:    harvest.DailyHarvestRecord{RunDate: "07-01-2024"},
		FetchedAt: fetched,
		Stale:     true,
	}}
	rec := serve(t, NewServer(fakePinger{}, cache, nil), "/readyz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body readiness
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ready", body.Status)
	require.Equal(t, "07-01-2024", body.LatestDate)
	require.True(t, body.Stale)
	require.NotNil(t, body.FetchedAt)
	require.True(t, fetched.Equal(*body.FetchedAt))
}

func TestServer_ReadyzWithEmptyStore(t *testing.T) {
	t.Parallel()

	cache := fakeLatest{err: harvest.ErrNotFound}
	rec := serve(t, NewServer(fakePinger{}, cache, nil), "/readyz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "latest_run_date")
}

func TestServer_ReadyzStoreDown(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(fakePinger{err: errors.New("connection refused")}, nil, nil), "/readyz")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
}

func TestServer_MetricsExposesHarvestSeries(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil, nil)
	_ = serve(t, s, "/healthz")
	rec := serve(t, s, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil, nil)
	s.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := serve(t, s, "/boom")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
