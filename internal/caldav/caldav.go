package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"celcatsync/internal/export"
	"celcatsync/internal/models"
)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "https://caldav.icloud.com/"

// authTransport handles adding Basic Auth and custom headers to requests.
type authTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "celcatsync/1.0")
	return t.Transport.RoundTrip(req)
}

// Client publishes timetable events to one calendar of a CalDAV server.
type Client struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	calendarURL  string
	productID    string
}

// Options configures NewClient.
type Options struct {
	Endpoint  string
	Username  string
	Password  string
	Calendar  string
	ProductID string
}

// NewClient connects to the server and looks up the calendar by name.
func NewClient(ctx context.Context, logger *slog.Logger, opts Options) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	httpClient := &http.Client{
		Transport: &authTransport{
			Username:  opts.Username,
			Password:  opts.Password,
			Transport: http.DefaultTransport,
		},
		Timeout: 30 * time.Second,
	}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	c := &Client{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     endpoint,
		productID:    opts.ProductID,
	}
	if c.productID == "" {
		c.productID = "-//celcatsync//EN"
	}

	logger.Info("Finding CalDAV calendar", "calendarName", opts.Calendar)
	calendarURL, err := c.findCalendar(ctx, opts.Calendar)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", opts.Calendar, err)
	}
	c.calendarURL = calendarURL
	logger.Info("Found CalDAV calendar", "url", calendarURL)

	return c, nil
}

// Name identifies the publisher in logs.
func (c *Client) Name() string { return "caldav" }

// Publish creates or replaces the event object <uid>.ics in the calendar.
func (c *Client) Publish(ctx context.Context, event models.Event, uid string) error {
	c.logger.Debug("Publishing event to CalDAV", "summary", event.Summary(), "uid", uid)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, c.productID)
	cal.Children = append(cal.Children, export.ToVEvent(event, uid, time.Now()))

	eventPath := path.Join(c.calendarPath(), objectName(uid))

	writer, err := c.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload event: %w", err)
	}

	c.logger.Info("Published event to CalDAV", "summary", event.Summary(), "uid", uid)
	return nil
}

// calendarPath is the calendar collection path relative to the endpoint.
func (c *Client) calendarPath() string {
	return strings.TrimPrefix(c.calendarURL, strings.TrimSuffix(c.endpoint, "/"))
}

// findCalendar discovers the user's calendars and returns the URL for the one with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return strings.TrimSuffix(c.endpoint, "/") + cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// objectName turns a UID into a safe resource name.
func objectName(uid string) string {
	return url.PathEscape(uid) + ".ics"
}
