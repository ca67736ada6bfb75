package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/models"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
	"github.com/extraction017/temporav3/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type icsRenderer interface {
	Render(entries []export.CalendarEntry, name string) ([]byte, error)
}

// ExportResult is a rendered agenda ready to download.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders a week agenda.
type ExportService struct {
	events weekReader
	csv    csvRenderer
	pdf    pdfRenderer
	ics    icsRenderer
	now    func() time.Time
	loc    *time.Location
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the package defaults.
func NewExportService(events weekReader, csv csvRenderer, pdf pdfRenderer, ics icsRenderer, now func() time.Time, loc *time.Location, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("Day")
	}
	if ics == nil {
		ics = export.NewICSExporter()
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{events: events, csv: csv, pdf: pdf, ics: ics, now: now, loc: loc, logger: logger}
}

// Week renders the week weekOffset weeks from the current one.
func (s *ExportService) Week(ctx context.Context, weekOffset int, format export.Format) (*ExportResult, error) {
	weekStart := models.WeekStart(s.now().In(s.loc)).AddDate(0, 0, 7*weekOffset)
	weekEnd := weekStart.AddDate(0, 0, 7)
	events, err := s.events.ListInRange(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	events = inWindow(events, models.Span{Start: weekStart, End: weekEnd})

	title := fmt.Sprintf("Agenda %s to %s", weekStart.Format("2006-01-02"), weekEnd.AddDate(0, 0, -1).Format("2006-01-02"))
	var body []byte
	switch format {
	case export.FormatCSV:
		body, err = s.csv.Render(agendaDataset(events))
	case export.FormatPDF:
		body, err = s.pdf.Render(agendaDataset(events), title)
	case export.FormatICS:
		body, err = s.ics.Render(calendarEntries(events, s.now()), title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("agenda exported",
		zap.String("format", string(format)),
		zap.Time("week_start", weekStart),
		zap.Int("events", len(events)),
	)
	return &ExportResult{
		Filename:    fmt.Sprintf("agenda-%s.%s", weekStart.Format("2006-01-02"), format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func agendaDataset(events []models.Event) export.Dataset {
	data := export.Dataset{
		Headers: []string{"Day", "Date", "Start", "End", "Title", "Category", "Priority", "Type", "Locked"},
		Rows:    make([]map[string]string, 0, len(events)),
	}
	for _, e := range events {
		locked := "no"
		if e.Locked {
			locked = "yes"
		}
		data.Rows = append(data.Rows, map[string]string{
			"Day":      e.Start.Weekday().String(),
			"Date":     e.Start.Format("2006-01-02"),
			"Start":    e.Start.Format("15:04"),
			"End":      e.End.Format("15:04"),
			"Title":    e.Title,
			"Category": string(e.Category),
			"Priority": string(e.Priority),
			"Type":     string(e.Kind),
			"Locked":   locked,
		})
	}
	return data
}

func calendarEntries(events []models.Event, stamp time.Time) []export.CalendarEntry {
	entries := make([]export.CalendarEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, export.CalendarEntry{
			UID:         e.ID + "@temporav3",
			Summary:     e.Title,
			Description: e.Notes,
			Category:    string(e.Category),
			Start:       e.Start,
			End:         e.End,
			Stamp:       stamp,
		})
	}
	return entries
}
