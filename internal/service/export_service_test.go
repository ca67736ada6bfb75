package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/pkg/export"
)

func newExportServiceForTest(repo *memoryEvents) *ExportService {
	return NewExportService(repo, nil, nil, nil, clock(monday), time.UTC, zap.NewNop())
}

func exportWeek() *memoryEvents {
	locked := fixed("Board review", models.CategoryMeeting, "2026-10-21", "14:00", "15:00")
	locked.Locked = true
	locked.Notes = "quarterly"
	return newMemoryEvents(
		fixed("Deep work", models.CategoryWork, "2026-10-20", "09:00", "11:00"),
		locked,
		fixed("Last week", models.CategoryWork, "2026-10-14", "09:00", "10:00"),
	)
}

func TestExportServiceCSV(t *testing.T) {
	svc := newExportServiceForTest(exportWeek())

	result, err := svc.Week(context.Background(), 0, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "agenda-2026-10-19.csv", result.Filename)
	assert.Equal(t, export.FormatCSV.ContentType(), result.ContentType)

	records, err := csv.NewReader(bytes.NewReader(result.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Day", "Date", "Start", "End", "Title", "Category", "Priority", "Type", "Locked"}, records[0])
	assert.Equal(t, []string{"Tuesday", "2026-10-20", "09:00", "11:00", "Deep work", "Work", "medium", "fixed", "no"}, records[1])
	assert.Equal(t, "yes", records[2][8])
}

func TestExportServicePDF(t *testing.T) {
	svc := newExportServiceForTest(exportWeek())

	result, err := svc.Week(context.Background(), 0, export.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "agenda-2026-10-19.pdf", result.Filename)
	assert.True(t, bytes.HasPrefix(result.Body, []byte("%PDF")))
}

func TestExportServiceICS(t *testing.T) {
	svc := newExportServiceForTest(exportWeek())

	result, err := svc.Week(context.Background(), 0, export.FormatICS)
	require.NoError(t, err)
	body := string(result.Body)
	assert.Equal(t, "agenda-2026-10-19.ics", result.Filename)
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "Board review@temporav3")
	assert.Contains(t, body, "quarterly")
	assert.NotContains(t, body, "Last week")
}

func TestExportServicePreviousWeekAndErrors(t *testing.T) {
	repo := exportWeek()
	svc := newExportServiceForTest(repo)

	result, err := svc.Week(context.Background(), -1, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "agenda-2026-10-12.csv", result.Filename)
	assert.Contains(t, string(result.Body), "Last week")

	_, err = svc.Week(context.Background(), 0, export.Format("xlsx"))
	assert.Equal(t, "VALIDATION_ERROR", appCode(err))

	repo.listErr = errors.New("db down")
	_, err = svc.Week(context.Background(), 0, export.FormatCSV)
	assert.Equal(t, "INTERNAL_ERROR", appCode(err))
}
