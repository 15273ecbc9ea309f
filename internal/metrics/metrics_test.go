package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIngest(t *testing.T) {
	m := New()
	m.RecordIngest("selection", true, nil)
	m.RecordIngest("uri-list", false, []string{"not_an_image"})
	m.RecordIngest("selection", true, []string{"unsupported_type", "oversized_payload"})
	m.RecordSweep(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("selection", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("uri-list", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("not_an_image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("oversized_payload")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.swept))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	m.Gauge("ingest", "sessions", "Open upload sessions", func() float64 { return 4 })

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/webtoons/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/webtoons/a", "/webtoons/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/webtoons/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `webtoonhub_http_requests_total{method="GET",route="/webtoons/:id",status="204"} 2`)
	assert.Contains(t, w.Body.String(), "webtoonhub_ingest_sessions 4")
}
