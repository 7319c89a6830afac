package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/teapot", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	teapotBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418"))
	goneBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "410"))

	for _, path := range []string{"/teapot", "/gone"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418")); val != teapotBefore+1 {
		t.Errorf("expected GET 418 count %v, got %v", teapotBefore+1, val)
	}
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "410")); val != goneBefore+1 {
		t.Errorf("expected GET 410 count %v, got %v", goneBefore+1, val)
	}
	if val := testutil.CollectAndCount(httpRequestDurationSeconds); val <= 0 {
		t.Errorf("expected request durations to be observed, got %d", val)
	}
}
