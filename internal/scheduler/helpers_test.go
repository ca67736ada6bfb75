package scheduler

import (
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

// 2026-10-19 is a Monday.
func at(day, clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func span(day, from, to string) models.Span {
	start := at(day, from)
	end := at(day, to)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return models.Span{Start: start, End: end}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func preferred(from, to string) *models.PreferredWindow {
	w, err := models.NewDailyWindow(from, to)
	if err != nil {
		panic(err)
	}
	return &models.PreferredWindow{DailyWindow: w, Enabled: true}
}

func dayRange(day string) models.Span {
	start := at(day, "00:00")
	return models.Span{Start: start, End: start.AddDate(0, 0, 1)}
}
