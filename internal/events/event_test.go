package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolResultFrameRoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)
	evt, err := ToolResult("add", map[string]interface{}{"a": 2.5, "b": 3.5}, "2.5 + 3.5 = 6", ts)
	require.NoError(t, err)

	frame := Frame(evt)
	assert.True(t, len(frame) > 8)
	assert.Equal(t, "data: ", string(frame[:6]))
	assert.Equal(t, "\n\n", string(frame[len(frame)-2:]))

	data, err := ParseFrame(frame)
	require.NoError(t, err)

	payload, err := DecodeToolResult(data)
	require.NoError(t, err)
	assert.Equal(t, TypeToolResult, payload.Type)
	assert.Equal(t, "add", payload.Tool)
	assert.Equal(t, map[string]interface{}{"a": 2.5, "b": 3.5}, payload.Input)
	assert.Equal(t, "2.5 + 3.5 = 6", payload.Result)
	assert.Equal(t, ts.Format(time.RFC3339Nano), payload.Timestamp)
}

func TestEventIsImmutable(t *testing.T) {
	t.Parallel()

	input := map[string]interface{}{"a": 1.0}
	evt, err := ToolResult("add", input, "1", time.Now())
	require.NoError(t, err)

	input["a"] = 99.0
	fields, err := evt.Fields()
	require.NoError(t, err)
	fields["tool"] = "mutated"

	again, err := evt.Fields()
	require.NoError(t, err)
	assert.Equal(t, "add", again["tool"])
	assert.Equal(t, map[string]interface{}{"a": 1.0}, again["input"])

	raw := evt.Bytes()
	raw[0] = 'x'
	assert.Equal(t, byte('{'), evt.Bytes()[0])
}

func TestEventJSONRoundTrip(t *testing.T) {
	t.Parallel()

	evt, err := Connected("relay connected", time.Now())
	require.NoError(t, err)

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeConnected, decoded.Type)
	assert.True(t, evt.Timestamp.Equal(decoded.Timestamp))
	assert.JSONEq(t, string(evt.Bytes()), string(decoded.Bytes()))
}

func TestNewRequiresType(t *testing.T) {
	t.Parallel()

	_, err := New("", nil, time.Now())
	assert.Error(t, err)
}

func TestBridgeSkipsOwnMessages(t *testing.T) {
	t.Parallel()

	local := &Bridge{origin: "instance-a", ch: defaultChannel}
	remote := &Bridge{origin: "instance-b", ch: defaultChannel}

	evt, err := ToolResult("add", map[string]interface{}{"a": 1.0, "b": 2.0}, "1 + 2 = 3", time.Now())
	require.NoError(t, err)

	payload, err := local.encode(evt)
	require.NoError(t, err)

	_, isRemote, err := local.decode(payload)
	require.NoError(t, err)
	assert.False(t, isRemote)

	got, isRemote, err := remote.decode(payload)
	require.NoError(t, err)
	assert.True(t, isRemote)
	assert.Equal(t, TypeToolResult, got.Type)
	assert.JSONEq(t, string(evt.Bytes()), string(got.Bytes()))
}

func TestNilBridgeIsNoop(t *testing.T) {
	t.Parallel()

	var b *Bridge
	assert.NoError(t, b.Publish(context.Background(), Event{}))
	assert.Nil(t, NewBridge(BridgeOptions{}))
}
