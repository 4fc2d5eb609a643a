package openapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONIsValidDocument(t *testing.T) {
	data, err := JSON()
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
}

func TestPathsCoverRelayRoutes(t *testing.T) {
	paths, err := Paths()
	require.NoError(t, err)
	for _, p := range []string{"/sse", "/ws", "/tool/{name}", "/tools/call", "/tools", "/health", "/history"} {
		assert.Contains(t, paths, p)
	}
}
