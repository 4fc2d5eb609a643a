// Package handlers provides HTTP request handlers for the tool relay API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/ol-tool-relay/internal/events"
	"github.com/oremus-labs/ol-tool-relay/internal/invoke"
	"github.com/oremus-labs/ol-tool-relay/internal/logutil"
	"github.com/oremus-labs/ol-tool-relay/internal/openapi"
	"github.com/oremus-labs/ol-tool-relay/internal/relay"
	"github.com/oremus-labs/ol-tool-relay/internal/store"
	"github.com/oremus-labs/ol-tool-relay/internal/tools"
	"github.com/rs/zerolog"
)

const maxArgumentBytes = 1 << 20

// Options configures handler runtime behavior.
type Options struct {
	Channel          relay.ChannelOptions
	ConnectedMessage string
	HistoryLimit     int
}

type invoker interface {
	Invoke(ctx context.Context, name string, rawArgs []byte) (*invoke.Result, error)
}

type toolLister interface {
	List() []tools.Declaration
}

type historyReader interface {
	ListInvocations(ctx context.Context, tool string, limit int) ([]store.Invocation, error)
}

// Handler encapsulates dependencies for HTTP handlers.
type Handler struct {
	invoker  invoker
	tools    toolLister
	registry *relay.Registry
	health   *relay.HealthReporter
	history  historyReader
	opts     Options
	logger   zerolog.Logger
}

// New creates a new Handler instance. history may be nil when the audit log is disabled.
func New(inv invoker, toolList toolLister, registry *relay.Registry, history historyReader, opts Options) *Handler {
	if opts.ConnectedMessage == "" {
		opts.ConnectedMessage = "SSE Server Connected"
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if history != nil && isNilInterface(history) {
		history = nil
	}
	return &Handler{
		invoker:  inv,
		tools:    toolList,
		registry: registry,
		health:   relay.NewHealthReporter(registry),
		history:  history,
		opts:     opts,
		logger:   logutil.Component("handlers"),
	}
}

type callRequest struct {
	Name      string          `json:"name" binding:"required"`
	Arguments json.RawMessage `json:"arguments"`
}

// Health reports relay status and the number of connected subscribers.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Report())
}

// StreamEvents opens a server-sent events subscription.
func (h *Handler) StreamEvents(c *gin.Context) {
	ch, err := relay.NewSSEChannel(c.Writer, h.opts.Channel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	connected, err := events.Connected(h.opts.ConnectedMessage, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build connected event")
		return
	}
	if err := ch.WriteDirect(connected); err != nil {
		h.logger.Warn().Err(err).Msg("failed to acknowledge SSE subscriber")
		return
	}

	h.subscribe(ch)
	_ = ch.Serve(c.Request.Context())
}

// StreamWebSocket opens a WebSocket subscription carrying the same events.
func (h *Handler) StreamWebSocket(c *gin.Context) {
	conn, err := relay.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	ch := relay.NewWSChannel(conn, h.opts.Channel)

	connected, err := events.Connected(h.opts.ConnectedMessage, time.Now())
	if err == nil {
		err = ch.Send(c.Request.Context(), connected)
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to acknowledge websocket subscriber")
		ch.Close(err)
		return
	}

	h.subscribe(ch)
	_ = ch.Serve(c.Request.Context())
}

func (h *Handler) subscribe(ch relay.Channel) {
	ch.OnClose(func() {
		if h.registry.Unregister(ch) {
			h.logger.Info().
				Str("subscriber", ch.ID()).
				Str("transport", ch.Transport()).
				Int("clients", h.registry.Size()).
				Msg("subscriber disconnected")
		}
	})
	h.registry.Register(ch)
	if ch.State() == relay.StateClosed {
		h.registry.Unregister(ch)
		return
	}
	h.logger.Info().
		Str("subscriber", ch.ID()).
		Str("transport", ch.Transport()).
		Int("clients", h.registry.Size()).
		Msg("subscriber connected")
}

// InvokeTool runs the tool named in the path with the request body as arguments.
func (h *Handler) InvokeTool(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxArgumentBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read request body"})
		return
	}
	h.invoke(c, c.Param("name"), body)
}

// CallTool runs a tool from a {"name", "arguments"} request.
func (h *Handler) CallTool(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxArgumentBytes)
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	h.invoke(c, req.Name, req.Arguments)
}

func (h *Handler) invoke(c *gin.Context, name string, args []byte) {
	res, err := h.invoker.Invoke(c.Request.Context(), name, args)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.requestLogger(c).Error().Err(err).Str("tool", name).Msg("tool invocation failed")
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	resp := gin.H{
		"success": true,
		"tool":    res.Tool,
		"result":  res.Text,
		"delivery": gin.H{
			"eventId":   res.Delivery.EventID,
			"attempted": res.Delivery.Attempted,
			"succeeded": res.Delivery.Succeeded,
			"failed":    len(res.Delivery.Failed),
		},
	}
	if res.Value != nil {
		resp["value"] = res.Value
	}
	c.JSON(http.StatusOK, resp)
}

// requestLogger prefers the request-scoped logger installed by the API middleware.
func (h *Handler) requestLogger(c *gin.Context) *zerolog.Logger {
	if l := zerolog.Ctx(c.Request.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.logger
}

// ListTools returns the declared tools and their input schemas.
func (h *Handler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.tools.List()})
}

// ListHistory returns recent invocation records.
func (h *Handler) ListHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invocation history disabled"})
		return
	}
	limit := h.opts.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	records, err := h.history.ListInvocations(c.Request.Context(), c.Query("tool"), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list invocation history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if records == nil {
		records = []store.Invocation{}
	}
	c.JSON(http.StatusOK, gin.H{"invocations": records})
}

// OpenAPISpec serves the API description as JSON.
func (h *Handler) OpenAPISpec(c *gin.Context) {
	data, err := openapi.JSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render OpenAPI document"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func errorStatus(err error) int {
	var (
		verr *invoke.ValidationError
		xerr *invoke.ExecutionError
	)
	switch {
	case errors.Is(err, invoke.ErrToolNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &xerr) && errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
