package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"celcatsync/internal/models"
)

const propTransparency = "TRANSP"

// ICS writes an iCalendar file with one VEVENT per event.
type ICS struct {
	ProductID string
	UIDDomain string
	// Now stamps DTSTAMP; time.Now when nil.
	Now func() time.Time
}

// Write encodes events and stores them at out.
func (x ICS) Write(events []models.Event, out string) error {
	var buf bytes.Buffer
	if err := x.Encode(&buf, events); err != nil {
		return err
	}
	return writeFile(out, buf.Bytes())
}

// Encode writes the calendar to w. No events still gives a valid, empty
// VCALENDAR.
func (x ICS) Encode(w io.Writer, events []models.Event) error {
	cal := x.Calendar(events)
	if len(cal.Children) == 0 {
		// go-ical refuses to encode a calendar without components.
		return x.encodeEmpty(w)
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// Calendar builds the VCALENDAR for events.
func (x ICS) Calendar(events []models.Event) *ical.Calendar {
	now := time.Now
	if x.Now != nil {
		now = x.Now
	}
	stamp := now().UTC()

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, x.productID())
	for _, ev := range events {
		cal.Children = append(cal.Children, ToVEvent(ev, EventUID(ev, x.UIDDomain), stamp))
	}
	return cal
}

func (x ICS) encodeEmpty(w io.Writer) error {
	_, err := fmt.Fprintf(w, "BEGIN:%s\r\n%s:%s\r\n%s:2.0\r\nEND:%s\r\n",
		ical.CompCalendar, ical.PropProductID, x.productID(), ical.PropVersion, ical.CompCalendar)
	if err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func (x ICS) productID() string {
	if x.ProductID == "" {
		return "-//celcatsync//EN"
	}
	return x.ProductID
}

// ToVEvent converts an event to a VEVENT component. Missing bounds are
// left out.
func ToVEvent(ev models.Event, uid string, stamp time.Time) *ical.Component {
	ve := ical.NewEvent()
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	if ev.Start != nil {
		ve.Props.SetDateTime(ical.PropDateTimeStart, ev.Start.UTC())
	}
	if ev.End != nil {
		ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.End.UTC())
	}
	ve.Props.SetText(ical.PropLocation, ev.Location)
	ve.Props.SetText(ical.PropDescription, ev.Details)
	ve.Props.SetText(ical.PropSummary, ev.Summary())
	transp := ical.NewProp(propTransparency)
	transp.Value = "OPAQUE"
	ve.Props.Set(transp)
	return ve.Component
}

// EventUID is stable for events with a backend id, random otherwise.
func EventUID(ev models.Event, domain string) string {
	if domain == "" {
		domain = "celcatsync"
	}
	if ev.ID != nil && *ev.ID != "" {
		return *ev.ID + "@" + domain
	}
	return uuid.New().String() + "@" + domain
}
