// Package quota implements the HTTP client for the quota monitor and wake endpoints.
package quota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/j-veylop/glm-tray/internal/logger"
	"github.com/j-veylop/glm-tray/internal/models"
)

const (
	connectTimeout = 5 * time.Second
	requestTimeout = 15 * time.Second

	// tokensLimitType is the limit preferred when a response lists several.
	tokensLimitType = "TOKENS_LIMIT"

	wakeModel = "glm-5"

	usageTimeLayout = "2006-01-02 15:04:05"
)

// ErrNoRequestURL is returned when a wake is requested for a slot without a request URL.
var ErrNoRequestURL = errors.New("no request URL configured")

// Client talks to the quota and chat completion endpoints of one provider.
type Client struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client with the connect and request timeouts the scheduler relies on.
func NewClient() *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	return NewClientWithHTTP(&http.Client{
		Timeout:   requestTimeout,
		Transport: transport,
	})
}

// NewClientWithHTTP creates a client on top of an existing http.Client.
func NewClientWithHTTP(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}
	return &Client{httpClient: hc, now: time.Now}
}

// AuthHeader normalizes an API key into a bearer authorization value.
func AuthHeader(apiKey string) string {
	key := strings.TrimSpace(apiKey)
	if strings.HasPrefix(key, "Bearer ") {
		return key
	}
	return "Bearer " + key
}

// FetchQuota reads the current quota window of a slot.
func (c *Client) FetchQuota(ctx context.Context, cfg models.SlotConfig) (*models.QuotaSnapshot, error) {
	log := logger.With("slot", cfg.Slot)
	if cfg.Logging {
		log.Info("quota request", "method", http.MethodGet, "url", cfg.QuotaURL)
	} else {
		log.Debug("fetching quota", "url", cfg.QuotaURL)
	}

	body, err := c.get(ctx, cfg, cfg.QuotaURL)
	if err != nil {
		if cfg.Logging {
			log.Warn("quota request error", "error", err)
		}
		return nil, err
	}

	if cfg.Logging {
		log.Info("quota response", "body", string(body))
	}

	snapshot, err := ParseQuota(body)
	if err != nil {
		return nil, err
	}

	log.Debug("quota fetched",
		"percentage", snapshot.Percentage,
		"timer_active", snapshot.TimerActive,
		"reset", snapshot.NextResetHMS,
	)
	return snapshot, nil
}

// ParseQuota extracts the quota snapshot from a quota/limit response body.
func ParseQuota(body []byte) (*models.QuotaSnapshot, error) {
	data, err := quotaData(body)
	if err != nil {
		return nil, err
	}

	limits := data.Get("limits").Array()
	if len(limits) == 0 {
		return nil, errors.New("quota limits missing")
	}

	selected := data.Get(`limits.#(type=="` + tokensLimitType + `")`)
	if !selected.Exists() {
		selected = limits[0]
	}

	snapshot := &models.QuotaSnapshot{
		Percentage: clampPercentage(selected.Get("percentage").Int()),
	}

	reset := selected.Get("nextResetTime")
	snapshot.TimerActive = reset.Exists() && reset.Type != gjson.Null
	if ts := reset.Int(); snapshot.TimerActive && ts > 0 {
		snapshot.NextResetEpochMs = models.Int64Ptr(ts)
		snapshot.NextResetHMS = models.FormatResetHMS(ts)
	}

	return snapshot, nil
}

func quotaData(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.New("invalid quota JSON response")
	}

	doc := gjson.ParseBytes(body)
	code := doc.Get("code")
	if !code.Exists() {
		return gjson.Result{}, errors.New("invalid quota JSON response: missing code")
	}
	if code.Int() != 200 {
		return gjson.Result{}, fmt.Errorf("quota API code %d", code.Int())
	}

	data := doc.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return gjson.Result{}, errors.New("quota response missing data")
	}
	return data, nil
}

// SendWake posts a minimal chat completion to start a new quota window.
func (c *Client) SendWake(ctx context.Context, cfg models.SlotConfig) error {
	return c.ping(ctx, cfg, "wake")
}

// Warmup sends the same ping as SendWake on user request.
func (c *Client) Warmup(ctx context.Context, cfg models.SlotConfig) error {
	return c.ping(ctx, cfg, "warmup")
}

func (c *Client) ping(ctx context.Context, cfg models.SlotConfig, kind string) error {
	log := logger.With("slot", cfg.Slot)
	if strings.TrimSpace(cfg.RequestURL) == "" {
		return ErrNoRequestURL
	}

	body, err := PingBody()
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", kind, err)
	}

	if cfg.Logging {
		log.Info(kind+" request", "method", http.MethodPost, "url", cfg.RequestURL, "body", body)
	} else {
		log.Info("sending "+kind+" request", "url", cfg.RequestURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.RequestURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", kind, err)
	}
	setHeaders(req, cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if cfg.Logging {
			log.Warn(kind+" request error", "error", err)
		}
		return fmt.Errorf("%s request failed: %w", kind, err)
	}
	defer closeBody(resp)
	// Chat completion bodies are not logged.
	_, _ = io.Copy(io.Discard, resp.Body)

	if cfg.Logging {
		log.Info(kind+" response", "status", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s HTTP error: %d", kind, resp.StatusCode)
	}

	log.Info(kind + " request succeeded")
	return nil
}

// PingBody returns the chat completion payload used for wake and warmup requests.
func PingBody() (string, error) {
	body, err := sjson.Set("", "model", wakeModel)
	if err != nil {
		return "", err
	}
	body, err = sjson.SetRaw(body, "messages", "[]")
	if err != nil {
		return "", err
	}
	for _, msg := range []map[string]string{
		{"role": "system", "content": "You are a helpful assistant."},
		{"role": "user", "content": "ping"},
	} {
		body, err = sjson.Set(body, "messages.-1", msg)
		if err != nil {
			return "", err
		}
	}
	return body, nil
}

// FetchSlotStats collects plan limits and the last 24 hours of usage.
// Usage endpoints are best effort and report zero on failure.
func (c *Client) FetchSlotStats(ctx context.Context, cfg models.SlotConfig) (*models.SlotStats, error) {
	body, err := c.get(ctx, cfg, cfg.QuotaURL)
	if err != nil {
		return nil, err
	}
	data, err := quotaData(body)
	if err != nil {
		return nil, err
	}

	stats := &models.SlotStats{Level: data.Get("level").String()}
	if stats.Level == "" {
		stats.Level = "unknown"
	}

	for _, l := range data.Get("limits").Array() {
		info := models.LimitInfo{
			TypeName:      l.Get("type").String(),
			Percentage:    clampPercentage(l.Get("percentage").Int()),
			Usage:         optionalInt(l.Get("usage")),
			CurrentValue:  optionalInt(l.Get("currentValue")),
			Remaining:     optionalInt(l.Get("remaining")),
			NextResetTime: optionalInt(l.Get("nextResetTime")),
			UsageDetails:  []models.UsageDetail{},
		}
		if info.NextResetTime != nil {
			info.NextResetHMS = models.FormatResetHMS(*info.NextResetTime)
		}
		for _, d := range l.Get("usageDetails").Array() {
			info.UsageDetails = append(info.UsageDetails, models.UsageDetail{
				ModelCode: d.Get("modelCode").String(),
				Usage:     d.Get("usage").Int(),
			})
		}
		stats.Limits = append(stats.Limits, info)
	}

	base := strings.TrimSuffix(cfg.QuotaURL, "/quota/limit")
	now := c.now()
	query := url.Values{}
	query.Set("startTime", now.Add(-24*time.Hour).Format(usageTimeLayout))
	query.Set("endTime", now.Format(usageTimeLayout))

	if usage, ok := c.usageTotals(ctx, cfg, base+"/model-usage?"+query.Encode()); ok {
		stats.TotalModelCalls24h = usage.Get("totalModelCallCount").Int()
		stats.TotalTokens24h = usage.Get("totalTokensUsage").Int()
	}
	if usage, ok := c.usageTotals(ctx, cfg, base+"/tool-usage?"+query.Encode()); ok {
		stats.TotalNetworkSearch24h = usage.Get("totalNetworkSearchCount").Int()
		stats.TotalWebRead24h = usage.Get("totalWebReadMcpCount").Int()
		stats.TotalZread24h = usage.Get("totalZreadMcpCount").Int()
		stats.TotalSearchMCP24h = usage.Get("totalSearchMcpCount").Int()
	}

	return stats, nil
}

func (c *Client) usageTotals(ctx context.Context, cfg models.SlotConfig, rawURL string) (gjson.Result, bool) {
	body, err := c.get(ctx, cfg, rawURL)
	if err != nil {
		logger.Debug("usage request failed", "slot", cfg.Slot, "error", err)
		return gjson.Result{}, false
	}
	doc := gjson.ParseBytes(body)
	if doc.Get("code").Int() != 200 {
		return gjson.Result{}, false
	}
	totals := doc.Get("data.totalUsage")
	return totals, totals.Exists()
}

func (c *Client) get(ctx context.Context, cfg models.SlotConfig, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quota request: %w", err)
	}
	setHeaders(req, cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quota request failed: %w", err)
	}
	defer closeBody(resp)

	if cfg.Logging {
		logger.Info("quota response status", "slot", cfg.Slot, "status", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("quota HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quota response: %w", err)
	}
	return body, nil
}

func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", AuthHeader(apiKey))
	req.Header.Set("Accept-Language", "en-US")
	req.Header.Set("Content-Type", "application/json")
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		logger.Error("failed to close response body", "error", err)
	}
}

func optionalInt(r gjson.Result) *int64 {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	return models.Int64Ptr(r.Int())
}

func clampPercentage(v int64) int {
	return int(min(max(v, 0), 100))
}
