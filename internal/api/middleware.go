package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
	unmatchedRoute  = "unmatched"
)

// routeOf returns the registered route pattern so labels stay bounded.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}

// requestContext assigns a request ID and stores a request-scoped logger in
// the request context, retrievable with zerolog.Ctx. The completed request is
// logged through that same logger.
func requestContext(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		logger := base.With().
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("route", routeOf(c)).
			Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = logger.Error()
		case status >= http.StatusBadRequest:
			evt = logger.Warn()
		default:
			evt = logger.Info()
		}
		evt.Int("status", status).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := routeOf(c)
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// bearerToken reads the Authorization bearer credential, falling back to X-API-Key.
func bearerToken(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// tokenGuard rejects requests without the configured token. An empty token disables the check.
func tokenGuard(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(token)
	return func(c *gin.Context) {
		if subtle.ConstantTimeCompare([]byte(bearerToken(c.Request)), want) != 1 {
			zerolog.Ctx(c.Request.Context()).Warn().Msg("rejected invocation without a valid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}
		c.Next()
	}
}
