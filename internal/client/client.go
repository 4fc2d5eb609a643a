// Package client is a Go client for the relay's HTTP API and event stream.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oremus-labs/ol-tool-relay/internal/events"
	"github.com/oremus-labs/ol-tool-relay/internal/relay"
	"github.com/oremus-labs/ol-tool-relay/internal/tools"
)

// Client wraps API calls.
type Client struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// APIError is a non-2xx response from the relay.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s failed (%d): %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Delivery summarizes the broadcast of an invocation's result.
type Delivery struct {
	EventID   string `json:"eventId"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// InvokeResponse is the body of a successful invocation.
type InvokeResponse struct {
	Success  bool        `json:"success"`
	Tool     string      `json:"tool"`
	Result   string      `json:"result"`
	Value    interface{} `json:"value,omitempty"`
	Delivery Delivery    `json:"delivery"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, target interface{}) error {
	httpClient := &http.Client{Timeout: c.Timeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Method: req.Method, Path: req.URL.Path, Status: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			apiErr.Message = body.Error
		}
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetJSON decodes the response of a GET request into target.
func (c *Client) GetJSON(ctx context.Context, path string, target interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

// PostRawJSON posts payload as-is and decodes the response into target.
func (c *Client) PostRawJSON(ctx context.Context, path string, payload []byte, target interface{}) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return c.do(req, target)
}

// Invoke runs a tool. args must be a JSON object; nil sends {}.
func (c *Client) Invoke(ctx context.Context, tool string, args json.RawMessage) (*InvokeResponse, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var resp InvokeResponse
	if err := c.PostRawJSON(ctx, "/tool/"+url.PathEscape(tool), args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches the relay health report.
func (c *Client) Health(ctx context.Context) (*relay.Health, error) {
	var h relay.Health
	if err := c.GetJSON(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Tools lists the declared tools.
func (c *Client) Tools(ctx context.Context) ([]tools.Declaration, error) {
	var body struct {
		Tools []tools.Declaration `json:"tools"`
	}
	if err := c.GetJSON(ctx, "/tools", &body); err != nil {
		return nil, err
	}
	return body.Tools, nil
}

// Stream opens the SSE feed and invokes handler for each event. Returning
// false stops the stream. Heartbeat comments are skipped.
func (c *Client) Stream(ctx context.Context, handler func(events.Event) bool) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/sse", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	httpClient := &http.Client{}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &APIError{Method: http.MethodGet, Path: "/sse", Status: resp.StatusCode}
	}

	reader := bufio.NewReader(resp.Body)
	var dataLines []string

	dispatch := func() bool {
		if len(dataLines) == 0 {
			return true
		}
		raw := strings.Join(dataLines, "\n")
		dataLines = dataLines[:0]

		var evt events.Event
		if err := json.Unmarshal([]byte(raw), &evt); err != nil {
			return true
		}
		if handler != nil {
			return handler(evt)
		}
		return true
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if !dispatch() {
				return nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
		}
	}
}
