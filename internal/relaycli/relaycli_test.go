package relaycli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oremus-labs/ol-tool-relay/config"
	"github.com/oremus-labs/ol-tool-relay/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgumentsMergesPairs(t *testing.T) {
	raw, err := buildArguments(`{"state":"CA"}`, []string{"a=2.5", "b=3", "label=hello", "flag=true"})
	require.NoError(t, err)

	var args map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &args))
	assert.Equal(t, "CA", args["state"])
	assert.Equal(t, 2.5, args["a"])
	assert.Equal(t, 3.0, args["b"])
	assert.Equal(t, "hello", args["label"])
	assert.Equal(t, true, args["flag"])
}

func TestBuildArgumentsRejectsMalformedPair(t *testing.T) {
	_, err := buildArguments("", []string{"novalue"})
	assert.Error(t, err)

	_, err = buildArguments("[1,2]", nil)
	assert.Error(t, err)
}

func TestDescribeToolResult(t *testing.T) {
	evt, err := events.ToolResult("add", map[string]interface{}{"a": 1.0}, "1 + 2 = 3", time.Now())
	require.NoError(t, err)
	line := describeEvent(evt)
	assert.Contains(t, line, "add")
	assert.Contains(t, line, "1 + 2 = 3")
}

func TestNewAppServesDefaultTools(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RELAY_HISTORY_DRIVER", "sqlite")
	t.Setenv("RELAY_HISTORY_DSN", filepath.Join(t.TempDir(), "history.db"))

	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.close()
	assert.Nil(t, a.bridge)

	ts := httptest.NewServer(a.server.Engine())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/tool/add", "application/json", strings.NewReader(`{"a":2.5,"b":3.5}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	history, err := http.Get(ts.URL + "/history?tool=add")
	require.NoError(t, err)
	defer history.Body.Close()
	var body struct {
		Invocations []struct {
			Tool   string `json:"tool"`
			Status string `json:"status"`
		} `json:"invocations"`
	}
	require.NoError(t, json.NewDecoder(history.Body).Decode(&body))
	require.Len(t, body.Invocations, 1)
	assert.Equal(t, "success", body.Invocations[0].Status)

	names := []string{}
	for _, d := range a.catalog.List() {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"add", "get-alerts"}, names)
}

func TestInvokeCommandPrintsResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"tool":"add","result":"2.5 + 3.5 = 6","value":6,"delivery":{"attempted":3,"succeeded":3,"failed":0}}`))
	}))
	defer ts.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"invoke", "add", "a=2.5", "b=3.5", "--server", ts.URL, "-o", "table"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "2.5 + 3.5 = 6")
	assert.Contains(t, out.String(), "delivered to 3/3 subscribers")
}
