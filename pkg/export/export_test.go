package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agenda() Dataset {
	return Dataset{
		Headers: []string{"Day", "Start", "Title"},
		Rows: []map[string]string{
			{"Day": "Monday", "Start": "09:00", "Title": "Deep work"},
			{"Day": "Monday", "Start": "13:00", "Title": "Standup, daily"},
			{"Day": "Tuesday", "Start": "10:00", "Title": "Gym"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("ics")
	require.NoError(t, err)
	assert.Equal(t, "text/calendar; charset=utf-8", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVRender(t *testing.T) {
	out, err := NewCSVExporter().Render(agenda())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Day,Start,Title", lines[0])
	assert.Equal(t, `Monday,13:00,"Standup, daily"`, lines[2])

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVRenderEscapesFormulas(t *testing.T) {
	data := Dataset{Headers: []string{"Title"}, Rows: []map[string]string{{"Title": "=HYPERLINK(\"x\")"}, {"Title": "@standup"}}}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"'=HYPERLINK(""x"")"`)
	assert.Contains(t, string(out), "'@standup")

	raw, err := (&CSVExporter{}).Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n@standup")
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDFExporter("Day").Render(agenda(), "Week of 19 Oct")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestICSRender(t *testing.T) {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	out, err := NewICSExporter().Render([]CalendarEntry{{
		UID:      "e1@temporav3",
		Summary:  "Deep work",
		Category: "Work",
		Start:    start,
		End:      start.Add(2 * time.Hour),
		Stamp:    start,
	}}, "Week")
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(bytes.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Deep work", events[0].GetProperty(ical.ComponentPropertySummary).Value)
	got, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, got.Equal(start))
}

func TestICSRejectsBadEntries(t *testing.T) {
	now := time.Now()
	_, err := NewICSExporter().Render([]CalendarEntry{{Summary: "x", Start: now, End: now.Add(time.Hour)}}, "")
	assert.Error(t, err)
	_, err = NewICSExporter().Render([]CalendarEntry{{UID: "a", Start: now, End: now}}, "")
	assert.Error(t, err)
}
