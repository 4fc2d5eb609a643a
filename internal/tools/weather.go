package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultNWSBaseURL   = "https://api.weather.gov"
	defaultNWSUserAgent = "ol-tool-relay/1.0"
)

// AlertsOptions configure the weather alerts tool.
type AlertsOptions struct {
	BaseURL   string
	UserAgent string
	CacheTTL  time.Duration
	CacheSize int
	Client    *http.Client
}

// Alerts looks up active National Weather Service alerts for a state.
type Alerts struct {
	baseURL   string
	userAgent string
	client    *http.Client
	cache     *expirable.LRU[string, string]
}

// NewAlerts builds the get-alerts tool. A zero CacheTTL disables caching.
func NewAlerts(opts AlertsOptions) *Alerts {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultNWSBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultNWSUserAgent
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	a := &Alerts{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		client:    opts.Client,
	}
	if opts.CacheTTL > 0 {
		a.cache = expirable.NewLRU[string, string](opts.CacheSize, nil, opts.CacheTTL)
	}
	return a
}

type alertsResponse struct {
	Features []struct {
		Properties alertProperties `json:"properties"`
	} `json:"features"`
}

type alertProperties struct {
	Event    string `json:"event"`
	AreaDesc string `json:"areaDesc"`
	Severity string `json:"severity"`
	Status   string `json:"status"`
	Headline string `json:"headline"`
}

// Execute implements Handler.
func (a *Alerts) Execute(ctx context.Context, args map[string]interface{}) (Output, error) {
	state, _ := args["state"].(string)
	state = strings.ToUpper(strings.TrimSpace(state))
	if len(state) != 2 {
		return Output{}, fmt.Errorf("state must be a two-letter code")
	}

	if a.cache != nil {
		if text, ok := a.cache.Get(state); ok {
			return Output{Text: text}, nil
		}
	}

	alerts, err := a.fetch(ctx, state)
	if err != nil {
		return Output{}, err
	}
	text := formatAlerts(state, alerts)
	if a.cache != nil {
		a.cache.Add(state, text)
	}
	return Output{Text: text}, nil
}

func (a *Alerts) fetch(ctx context.Context, state string) (*alertsResponse, error) {
	endpoint := fmt.Sprintf("%s/alerts?area=%s", a.baseURL, url.QueryEscape(state))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather service request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("weather service returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out alertsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode weather alerts: %w", err)
	}
	return &out, nil
}

func formatAlerts(state string, resp *alertsResponse) string {
	if len(resp.Features) == 0 {
		return fmt.Sprintf("No active alerts for %s", state)
	}
	blocks := make([]string, 0, len(resp.Features))
	for _, f := range resp.Features {
		p := f.Properties
		blocks = append(blocks, strings.Join([]string{
			"Event: " + orUnknown(p.Event),
			"Area: " + orUnknown(p.AreaDesc),
			"Severity: " + orUnknown(p.Severity),
			"Status: " + orUnknown(p.Status),
			"Headline: " + orDefault(p.Headline, "No headline"),
			"---",
		}, "\n"))
	}
	return fmt.Sprintf("Active alerts for %s:\n\n%s", state, strings.Join(blocks, "\n"))
}

func orUnknown(s string) string {
	return orDefault(s, "Unknown")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
