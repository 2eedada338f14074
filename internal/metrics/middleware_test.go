package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	okBefore := testutil.ToFloat64(statusRequestsTotal.WithLabelValues("GET", "/status", "200"))
	unreadyBefore := testutil.ToFloat64(statusRequestsTotal.WithLabelValues("GET", "/readyz", "503"))

	for _, path := range []string{"/status", "/readyz"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, okBefore+1, testutil.ToFloat64(statusRequestsTotal.WithLabelValues("GET", "/status", "200")))
	assert.Equal(t, unreadyBefore+1, testutil.ToFloat64(statusRequestsTotal.WithLabelValues("GET", "/readyz", "503")))
}
