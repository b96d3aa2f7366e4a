package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/api/script-jobs/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/script-jobs/:id", "200"))
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/script-jobs/"+id, nil))
	}
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/script-jobs/:id", "200"))

	assert.Equal(t, 2.0, after-before)
}

func TestPrometheusMiddleware_UnmatchedPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "unmatched", "404"))-before)
}

func TestRuntimeCollector_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRuntimeCollector(time.Millisecond).Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
