package celcat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"celcatsync/internal/config"
	"celcatsync/internal/models"
)

const (
	calendarPath  = "/Home/GetCalendarData"
	resourcesPath = "/Home/ReadResourceListItems"

	formContentType = "application/x-www-form-urlencoded; charset=UTF-8"
	jsonAccept      = "application/json, text/javascript, */*; q=0.01"
)

// Query is one GetCalendarData request.
type Query struct {
	Start        string   // ISO date, first day
	End          string   // ISO date, last day (or the day after, for agendaDay)
	ResourceType int      // resType code: module, room or group
	View         string   // calView keyword: agendaDay, agendaWeek, month
	IDs          []string // federationIds[] entries
}

// headerTransport adds the browser-like headers the backend expects on every
// request.
type headerTransport struct {
	UserAgent string
	Referer   string
	Transport http.RoundTripper
}

// RoundTrip adds required headers to each request.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.UserAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", t.Referer)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", jsonAccept)
	}
	return t.Transport.RoundTrip(req)
}

// Client talks to the CELCAT calendar endpoints.
type Client struct {
	httpClient   *http.Client
	logger       *slog.Logger
	baseURL      string
	colourScheme int
	retries      int
	backoff      time.Duration
}

// NewClient creates a client for the backend described by cfg.
func NewClient(logger *slog.Logger, cfg config.BackendConfig) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	referer := cfg.Referer
	if referer == "" {
		referer = baseURL + "/"
	}
	transport := &headerTransport{
		UserAgent: cfg.UserAgent,
		Referer:   referer,
		Transport: http.DefaultTransport,
	}
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger:       logger,
		baseURL:      baseURL,
		colourScheme: cfg.ColourScheme,
		retries:      cfg.Retries,
		backoff:      cfg.RetryBackoff,
	}
}

// Fetch issues one POST for q and returns the decoded records. A body that
// is JSON but not an array yields no records.
func (c *Client) Fetch(ctx context.Context, q Query) ([]models.RawRecord, error) {
	form := url.Values{}
	form.Set("start", q.Start)
	form.Set("end", q.End)
	form.Set("resType", strconv.Itoa(q.ResourceType))
	form.Set("calView", q.View)
	form.Set("colourScheme", strconv.Itoa(c.colourScheme))
	for _, id := range q.IDs {
		form.Add("federationIds[]", id)
	}
	encoded := form.Encode()

	c.logger.Debug("Fetching calendar data", "start", q.Start, "end", q.End, "resType", q.ResourceType, "view", q.View, "ids", q.IDs)

	body, err := c.withRetry(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+calendarPath, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", formContentType)
		return c.do(req)
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Op, fe.Start, fe.End = "calendar", q.Start, q.End
			return nil, fe
		}
		return nil, &FetchError{Op: "calendar", Start: q.Start, End: q.End, Err: err}
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, &DecodeError{Op: "calendar", Err: err}
	}
	c.logger.Debug("Fetched calendar data", "start", q.Start, "end", q.End, "count", len(records))
	return records, nil
}

// do executes req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	return body, nil
}

// withRetry runs fn up to 1+retries times, sleeping backoff*attempt² between
// attempts. Only temporary fetch failures are retried.
func (c *Client) withRetry(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(attempt*attempt)
			c.logger.Warn("Retrying backend request", "attempt", attempt+1, "max", c.retries+1, "backoff", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, &FetchError{Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		body, err := fn()
		if err == nil {
			return body, nil
		}
		lastErr = err

		var fe *FetchError
		if !errors.As(err, &fe) || !fe.temporary() || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// decodeRecords accepts a JSON array of objects. null, an empty body or any
// other JSON value means "no events"; non-object array elements are skipped.
func decodeRecords(body []byte) ([]models.RawRecord, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	records := make([]models.RawRecord, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, models.RawRecord(obj))
	}
	return records, nil
}

// String implements fmt.Stringer for log output.
func (q Query) String() string {
	return fmt.Sprintf("%s..%s resType=%d view=%s ids=%v", q.Start, q.End, q.ResourceType, q.View, q.IDs)
}
