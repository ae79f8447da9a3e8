package observability

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"

	_ "github.com/mattn/go-sqlite3"
)

func TestNewMetrics_Registers(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	m.PackageDownloaded("com.example.widget")

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["portal_package_downloads_total"])

	assert.Panics(t, func() { NewMetrics(registry) }, "double registration must fail loudly")
}

func TestMetrics_TransitionObserved(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.TransitionObserved("approve", nil)
	m.TransitionObserved("approve", nil)
	m.TransitionObserved("approve", apperrors.New(apperrors.KindInvalidTransition, "Plugin cannot be approved"))
	m.TransitionObserved("publish", apperrors.Forbidden())
	m.TransitionObserved("publish", errors.New("disk on fire"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PluginTransitionsTotal.WithLabelValues("approve", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PluginTransitionsTotal.WithLabelValues("approve", "invalid_transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PluginTransitionsTotal.WithLabelValues("publish", "forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PluginTransitionsTotal.WithLabelValues("publish", "internal")))
}

func TestMetrics_DomainCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.LoginAttempted("success")
	m.LoginAttempted("invalid_credentials")
	m.LoginAttempted("invalid_credentials")
	m.CacheEvent("hit")
	m.CacheEvent("miss")
	m.PackageDownloaded("a.b")
	m.PackageDownloaded("a.b")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublicCacheEventsTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PackageDownloadsTotal))
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/plugins/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Plugin not found"}`))
	}).Methods(http.MethodGet)

	for _, id := range []string{"a.one", "b.two", "c.three"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plugins/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/plugins/{id}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestsTotal), "ids must not become label values")
}

func TestHTTPMetricsMiddleware_Unmatched(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "200")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.LoginAttempted("success")

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `portal_logins_total{result="success"} 1`))
}

func TestMetrics_RegisterDBStats(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NoError(t, m.RegisterDBStats(db, "primary"))

	families, err := registry.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "go_sql_max_open_connections" {
			found = true
		}
	}
	assert.True(t, found)
}
