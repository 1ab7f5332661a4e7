package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/v1/contracts/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/contracts/:id", "204"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/contracts/abc", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/contracts/:id", "204")))
}

func TestRecordJobRun(t *testing.T) {
	before := testutil.ToFloat64(jobRuns.WithLabelValues("vendor-scores", "false"))
	RecordJobRun("vendor-scores", 0, false)
	assert.Equal(t, before+1, testutil.ToFloat64(jobRuns.WithLabelValues("vendor-scores", "false")))

	RecordJobRun("", time.Second, true)
	assert.Equal(t, float64(1), testutil.ToFloat64(jobRuns.WithLabelValues("unknown", "true")))
}
