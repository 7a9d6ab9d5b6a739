package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/samet0demir/enerji-piyasasi/config"
)

func newEngine(cfg config.CORSConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(), Metrics(), SetupCORS(cfg))
	r.GET("/api/weeks/:week_start/data", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestSetupCORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    string
	}{
		{"wildcard", "*", "http://dash.local", "*"},
		{"listed origin", "http://a.local, http://dash.local", "http://dash.local", "http://dash.local"},
		{"unlisted origin", "http://a.local", "http://dash.local", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(config.CORSConfig{AllowedOrigins: tt.allowed})
			req := httptest.NewRequest(http.MethodGet, "/api/weeks/2025-10-20/data", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestMetricsLabelsRouteTemplate(t *testing.T) {
	requestDuration.Reset()
	r := newEngine(config.CORSConfig{AllowedOrigins: "*"})
	for _, path := range []string{"/api/weeks/2025-10-20/data", "/api/weeks/2025-10-27/data"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 2, testutil.CollectAndCount(requestDuration))
}
