package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobOperation(t *testing.T) {
	m := New()

	m.BlobOperation("delete", ResultFailure)
	m.BlobOperation("delete", ResultFailure)
	m.BlobOperation("upload", ResultSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BlobOperations.WithLabelValues("delete", ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlobOperations.WithLabelValues("upload", ResultSuccess)))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.BlobOperation("delete", ResultFailure)
	m.ObserveRequest(http.MethodGet, "/products/", http.StatusOK, time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/products/", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	res := rec.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.Contains(string(body), `marketplace_http_requests_total{method="GET",route="/products/",status="200"} 1`))
}

func TestNewIsIndependent(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = New()
		_ = New()
	})
}
