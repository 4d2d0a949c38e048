package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"celcatsync/internal/config"
	"celcatsync/internal/models"
)

// CalendarClient publishes timetable events to a Google Calendar.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
}

// NewClient creates a Google Calendar client for one authorized account.
// The token is read from the account's file in cfg.TokenDir, written
// earlier by the auth command.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.GoogleConfig, account string) (*CalendarClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	oauthCfg, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	token, err := LoadToken(cfg.TokenDir, account)
	if err != nil {
		return nil, fmt.Errorf("no token for account %q, run the auth command first: %w", account, err)
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &CalendarClient{service: service, logger: logger.With("account", account), calendarID: calendarID}, nil
}

// Name identifies the publisher in logs.
func (c *CalendarClient) Name() string { return "google" }

// Publish imports the event into the calendar. Import keys on the iCalendar
// UID, so publishing the same UID twice updates the existing entry.
func (c *CalendarClient) Publish(ctx context.Context, event models.Event, uid string) error {
	if !event.Timed() {
		return fmt.Errorf("event %q has no start or end time", event.IDString())
	}
	c.logger.Debug("Publishing event to Google Calendar", "summary", event.Summary(), "uid", uid)

	_, err := c.service.Events.Import(c.calendarID, toGoogleEvent(event, uid)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to import event: %w", err)
	}

	c.logger.Info("Published event to Google Calendar", "summary", event.Summary(), "calendarID", c.calendarID)
	return nil
}

// toGoogleEvent converts a timetable event to the Google API shape.
func toGoogleEvent(event models.Event, uid string) *calendar.Event {
	ge := &calendar.Event{
		ICalUID:      uid,
		Summary:      event.Summary(),
		Description:  event.Details,
		Location:     event.Location,
		Transparency: "opaque",
	}
	if event.Start != nil {
		ge.Start = &calendar.EventDateTime{DateTime: event.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"}
	}
	if event.End != nil {
		ge.End = &calendar.EventDateTime{DateTime: event.End.UTC().Format(time.RFC3339), TimeZone: "UTC"}
	}
	return ge
}
