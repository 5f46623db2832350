package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics_RecordsRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	labels := prometheus.Labels{"method": http.MethodGet, "route": "/users/{id}", "status": "201"}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.With(labels)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
	assert.Positive(t, testutil.CollectAndCount(m.Duration))
}

func TestHTTPMetrics_ImplicitOK(t *testing.T) {
	m, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	labels := prometheus.Labels{"method": http.MethodGet, "route": "/ping", "status": "200"}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.With(labels)))
}

func TestNewHTTPMetrics_ReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)
	assert.Same(t, first.Requests, second.Requests)
}

func TestHTTPMetrics_NilIsPassThrough(t *testing.T) {
	var m *HTTPMetrics
	rr := httptest.NewRecorder()
	m.Handler(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
