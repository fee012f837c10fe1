package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CacheHits.WithLabelValues("listTasks").Inc()
	m.CacheMisses.WithLabelValues("listTasks").Inc()
	m.RateLimitRejections.WithLabelValues("principal-1").Inc()
	m.UpstreamRetries.WithLabelValues("projects.zoho.com").Inc()
	m.UpstreamRequests.WithLabelValues("projects.zoho.com", "success").Observe(0.1)
	m.TokenRefreshes.WithLabelValues("success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestHandler_ServesMetricsExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.CacheHits.WithLabelValues("listTasks").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler(reg).ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "zoho_mcp_bridge_cache_hits_total")
	assert.True(t, strings.Contains(rec.Body.String(), "listTasks"))
}
