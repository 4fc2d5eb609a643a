// Package invoke runs tool invocations and publishes their results.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oremus-labs/ol-tool-relay/internal/events"
	"github.com/oremus-labs/ol-tool-relay/internal/metrics"
	"github.com/oremus-labs/ol-tool-relay/internal/relay"
	"github.com/oremus-labs/ol-tool-relay/internal/store"
	"github.com/oremus-labs/ol-tool-relay/internal/tools"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type toolCatalog interface {
	Lookup(name string) (*tools.Tool, bool)
}

type publisher interface {
	Publish(ctx context.Context, evt events.Event) relay.DeliveryReport
}

type mirror interface {
	Publish(ctx context.Context, evt events.Event) error
}

type historyStore interface {
	AppendInvocation(ctx context.Context, rec *store.Invocation) error
}

// Options configure the service.
type Options struct {
	ToolTimeout time.Duration
	Logger      zerolog.Logger
	// Mirror forwards published events to other relay instances (optional).
	Mirror mirror
	// History records every invocation (optional).
	History historyStore
}

// Service validates, executes and broadcasts tool invocations.
type Service struct {
	catalog    toolCatalog
	dispatcher publisher
	mirror     mirror
	history    historyStore
	timeout    time.Duration
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Result is a successful invocation.
type Result struct {
	Tool     string                 `json:"tool"`
	Input    map[string]interface{} `json:"input"`
	Text     string                 `json:"result"`
	Value    interface{}            `json:"value,omitempty"`
	Delivery relay.DeliveryReport   `json:"delivery"`
}

// New creates a Service.
func New(catalog toolCatalog, dispatcher publisher, opts Options) *Service {
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = 15 * time.Second
	}
	s := &Service{
		catalog:    catalog,
		dispatcher: dispatcher,
		history:    opts.History,
		timeout:    opts.ToolTimeout,
		logger:     opts.Logger,
		tracer:     otel.Tracer("github.com/oremus-labs/ol-tool-relay/internal/invoke"),
		now:        time.Now,
	}
	if opts.Mirror != nil && !isNil(opts.Mirror) {
		s.mirror = opts.Mirror
	}
	if opts.History != nil && isNil(opts.History) {
		s.history = nil
	}
	return s
}

// Invoke runs the named tool with raw JSON arguments. An event is published
// only when the tool succeeds.
func (s *Service) Invoke(ctx context.Context, name string, rawArgs []byte) (*Result, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	res, input, err := s.invoke(ctx, name, rawArgs)
	status := outcome(err)
	metrics.ObserveToolInvocation(metricLabel(name, status), status, time.Since(start))
	s.record(ctx, name, input, res, status, err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (s *Service) invoke(ctx context.Context, name string, rawArgs []byte) (*Result, map[string]interface{}, error) {
	tool, ok := s.catalog.Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	rawArgs = bytes.TrimSpace(rawArgs)
	if len(rawArgs) == 0 {
		rawArgs = []byte("{}")
	}
	check := tool.Schema.Validate(rawArgs)
	if !check.Valid {
		return nil, nil, &ValidationError{Tool: name, Problems: check.Errors}
	}
	var input map[string]interface{}
	if err := json.Unmarshal(rawArgs, &input); err != nil || input == nil {
		return nil, nil, &ValidationError{Tool: name, Problems: []string{"arguments must be a JSON object"}}
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := tool.Handler.Execute(execCtx, input)
	if err != nil {
		return nil, input, &ExecutionError{Tool: name, Err: err}
	}

	evt, err := events.ToolResult(name, input, out.Text, s.now())
	if err != nil {
		return nil, input, &ExecutionError{Tool: name, Err: err}
	}
	report := s.dispatcher.Publish(ctx, evt)
	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, evt); err != nil {
			s.logger.Warn().Err(err).Str("tool", name).Str("event_id", evt.ID).Msg("failed to mirror event")
		}
	}

	s.logger.Info().
		Str("tool", name).
		Str("event_id", evt.ID).
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Int("failed", len(report.Failed)).
		Msg("tool result broadcast")

	return &Result{
		Tool:     name,
		Input:    input,
		Text:     out.Text,
		Value:    out.Value,
		Delivery: report,
	}, input, nil
}

func (s *Service) record(ctx context.Context, name string, input map[string]interface{}, res *Result, status string, err error) {
	if s.history == nil {
		return
	}
	rec := &store.Invocation{
		Tool:   name,
		Input:  input,
		Status: status,
	}
	if res != nil {
		rec.Result = res.Text
		rec.EventID = res.Delivery.EventID
		rec.Delivered = res.Delivery.Succeeded
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if herr := s.history.AppendInvocation(ctx, rec); herr != nil {
		s.logger.Warn().Err(herr).Str("tool", name).Msg("failed to record invocation")
	}
}
