package api

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/ol-tool-relay/internal/handlers"
	"github.com/oremus-labs/ol-tool-relay/internal/logutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the HTTP server wiring.
type Options struct {
	APIToken    string
	CORSOrigins []string
}

// Server wraps the Gin engine and associated configuration.
type Server struct {
	engine *gin.Engine
}

// NewServer constructs a Server with all HTTP routes configured.
func NewServer(handler *handlers.Handler, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware(opts.CORSOrigins), requestContext(logutil.Component("http")), metricsMiddleware())

	// Health + meta
	engine.GET("/health", handler.Health)
	engine.GET("/healthz", handler.Health)
	engine.GET("/openapi", handler.OpenAPISpec)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Subscriptions
	engine.GET("/sse", handler.StreamEvents)
	engine.GET("/ws", handler.StreamWebSocket)

	// Tools
	engine.GET("/tools", handler.ListTools)
	engine.GET("/history", handler.ListHistory)

	protected := engine.Group("/")
	protected.Use(tokenGuard(opts.APIToken))

	protected.POST("/tool/:name", handler.InvokeTool)
	protected.POST("/tools/call", handler.CallTool)

	return &Server{engine: engine}
}

// Engine exposes the underlying Gin engine for advanced use (testing, etc.).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start binds addr and serves in the background. A bind failure is returned
// to the caller. WriteTimeout stays unset so event streams are not cut off;
// subscriber writes carry their own deadlines.
func (s *Server) Start(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.Error("http server stopped", err, map[string]interface{}{"addr": addr})
		}
	}()
	return srv, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-API-Key", "X-Request-ID"}
	cfg.ExposeHeaders = []string{"X-Request-ID"}
	cfg.AllowWebSockets = true
	return cors.New(cfg)
}
