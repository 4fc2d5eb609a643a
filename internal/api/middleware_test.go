package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestContextPropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	engine := gin.New()
	engine.Use(requestContext(zerolog.New(&buf)))
	engine.GET("/ping", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("inside handler")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-42")
	engine.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "req-42", entry["request_id"])
		assert.Equal(t, "/ping", entry["route"])
	}

	var done map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &done))
	assert.Equal(t, float64(http.StatusNoContent), done["status"])
}

func TestRequestContextGeneratesIDWhenMissing(t *testing.T) {
	engine := gin.New()
	engine.Use(requestContext(zerolog.Nop()))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get(requestIDHeader), 36)
}

func TestMetricsLabelUnmatchedRoutesTogether(t *testing.T) {
	engine := gin.New()
	engine.Use(metricsMiddleware())

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)
	for _, path := range []string{"/a", "/b/c", "/random-123"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestTokenGuardAcceptsBearerAndAPIKey(t *testing.T) {
	engine := gin.New()
	engine.Use(tokenGuard("secret"))
	engine.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"bearer", "Authorization", "Bearer secret", http.StatusOK},
		{"lowercase scheme", "Authorization", "bearer secret", http.StatusOK},
		{"api key", "X-API-Key", "secret", http.StatusOK},
		{"wrong", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		engine.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.name)
	}
}
