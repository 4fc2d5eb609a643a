// Package events defines the immutable event records pushed to relay subscribers
// and the Redis bridge that mirrors them across relay instances.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the relay.
const (
	TypeConnected  = "connected"
	TypeToolResult = "tool_result"
)

// Event is a serialized, read-only record delivered to every subscriber.
// The JSON body is encoded once at construction and shared by all deliveries.
type Event struct {
	ID        string
	Type      string
	Timestamp time.Time

	body []byte
}

// New builds an event whose wire body is fields plus "type" and "timestamp".
// Reserved keys in fields are overwritten.
func New(eventType string, fields map[string]interface{}, ts time.Time) (Event, error) {
	if eventType == "" {
		return Event{}, errors.New("event type required")
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	flat := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		flat[k] = v
	}
	flat["type"] = eventType
	flat["timestamp"] = ts.Format(time.RFC3339Nano)

	body, err := json.Marshal(flat)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event: %w", err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: ts,
		body:      body,
	}, nil
}

// Connected is the acknowledgment sent when a push channel opens.
func Connected(message string, ts time.Time) (Event, error) {
	return New(TypeConnected, map[string]interface{}{"message": message}, ts)
}

// ToolResult is the event published after a successful tool invocation.
func ToolResult(tool string, input map[string]interface{}, result string, ts time.Time) (Event, error) {
	if input == nil {
		input = map[string]interface{}{}
	}
	return New(TypeToolResult, map[string]interface{}{
		"tool":   tool,
		"input":  input,
		"result": result,
	}, ts)
}

// Bytes returns a copy of the encoded JSON body.
func (e Event) Bytes() []byte {
	return bytes.Clone(e.body)
}

// Fields decodes a fresh copy of the body.
func (e Event) Fields() (map[string]interface{}, error) {
	var out map[string]interface{}
	if len(e.body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(e.body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalJSON emits the stored body unchanged.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.body) == 0 {
		return []byte("null"), nil
	}
	return e.Bytes(), nil
}

// UnmarshalJSON rebuilds an event from its wire body. A fresh ID is assigned.
func (e *Event) UnmarshalJSON(data []byte) error {
	var head struct {
		Type      string `json:"type"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.Type == "" {
		return errors.New("event missing type")
	}
	ts, err := time.Parse(time.RFC3339Nano, head.Timestamp)
	if err != nil {
		return fmt.Errorf("event timestamp: %w", err)
	}
	*e = Event{
		ID:        uuid.NewString(),
		Type:      head.Type,
		Timestamp: ts,
		body:      bytes.Clone(data),
	}
	return nil
}

// ToolResultPayload is the receiving-side view of a tool_result body.
type ToolResultPayload struct {
	Type      string                 `json:"type"`
	Tool      string                 `json:"tool"`
	Input     map[string]interface{} `json:"input"`
	Result    string                 `json:"result"`
	Timestamp string                 `json:"timestamp"`
}

// DecodeToolResult parses a tool_result body.
func DecodeToolResult(data []byte) (ToolResultPayload, error) {
	var p ToolResultPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	if p.Type != TypeToolResult {
		return p, fmt.Errorf("unexpected event type %q", p.Type)
	}
	return p, nil
}
