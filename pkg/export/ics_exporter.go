package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

// CalendarEntry is one VEVENT.
type CalendarEntry struct {
	UID         string
	Summary     string
	Description string
	Category    string
	Start       time.Time
	End         time.Time
	Stamp       time.Time
}

// ICSExporter renders entries as an iCalendar feed.
type ICSExporter struct {
	ProductID string
}

// NewICSExporter builds an iCalendar exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{ProductID: "-//temporav3//agenda//EN"}
}

// Render serializes entries into a PUBLISH calendar named name.
func (e *ICSExporter) Render(entries []CalendarEntry, name string) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(e.ProductID)
	if name != "" {
		cal.SetName(name)
	}
	for _, entry := range entries {
		if entry.UID == "" {
			return nil, fmt.Errorf("calendar entry %q has no uid", entry.Summary)
		}
		if !entry.End.After(entry.Start) {
			return nil, fmt.Errorf("calendar entry %s ends before it starts", entry.UID)
		}
		stamp := entry.Stamp
		if stamp.IsZero() {
			stamp = time.Now()
		}
		ev := cal.AddEvent(entry.UID)
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(entry.Start.UTC())
		ev.SetEndAt(entry.End.UTC())
		ev.SetSummary(entry.Summary)
		if entry.Description != "" {
			ev.SetDescription(entry.Description)
		}
		if entry.Category != "" {
			ev.AddProperty(ical.ComponentPropertyCategories, entry.Category)
		}
	}
	return []byte(cal.Serialize()), nil
}
