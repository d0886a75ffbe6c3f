package middlewares_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/middlewares"
)

// counterValue returns the http_requests_total sample with the labels.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			got := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := middlewares.NewMetrics(middlewares.WithMetricsRegistry(reg), middlewares.WithMetricsNamespace("shop"))
	require.Same(t, reg, m.Registry())

	app := internal.New(
		internal.WithMiddleware(m.Middleware()),
		internal.WithRoutes(func(r internal.Router) {
			r.GET("/posts/{id}", okHandler).SetName("posts.show")
			r.GET("/raw/{id}", okHandler)
			r.GET("/fail", func(c internal.Context) error { return internal.ErrConflict("taken") })
			r.Mount("/metrics", m.Handler())
		}),
	)

	serve(app, httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	serve(app, httptest.NewRequest(http.MethodGet, "/posts/2", nil))
	serve(app, httptest.NewRequest(http.MethodGet, "/raw/9", nil))
	serve(app, jsonRequest(http.MethodGet, "/fail"))
	serve(app, jsonRequest(http.MethodGet, "/missing"))

	const total = "shop_http_requests_total"
	require.InDelta(t, 2, counterValue(t, reg, total, map[string]string{"route": "posts.show", "method": "GET", "status": "200"}), 0)
	require.InDelta(t, 1, counterValue(t, reg, total, map[string]string{"route": "/raw/{id}", "status": "200"}), 0)
	require.InDelta(t, 1, counterValue(t, reg, total, map[string]string{"route": "/fail", "status": "409"}), 0)
	require.InDelta(t, 1, counterValue(t, reg, total, map[string]string{"route": middlewares.UnmatchedRoute, "status": "404"}), 0)

	w := serve(app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "shop_http_request_duration_seconds_bucket")
	require.Contains(t, string(body), "shop_http_requests_in_flight 0")
}

func TestMetricsPrivateRegistry(t *testing.T) {
	t.Parallel()

	// Each instance owns its registry, so two apps do not collide.
	a := middlewares.NewMetrics(middlewares.WithMetricsBuckets(0.1, 1))
	b := middlewares.NewMetrics()
	require.NotSame(t, a.Registry(), b.Registry())
}
