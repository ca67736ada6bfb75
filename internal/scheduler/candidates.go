package scheduler

import (
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

// alignUp rounds t up to the next multiple of stride counted from local midnight.
func alignUp(t time.Time, stride time.Duration) time.Time {
	if stride <= 0 {
		return t
	}
	midnight := models.StartOfDay(t)
	rem := t.Sub(midnight) % stride
	if rem == 0 {
		return t
	}
	return t.Add(stride - rem)
}

// candidateQuery describes one enumeration pass over a window.
type candidateQuery struct {
	window    models.Span
	duration  time.Duration
	stride    time.Duration
	occupied  Snapshot
	excludeID string
	sleep     *models.DailyWindow
}

// walk visits conflict-free spans in start order until visit returns false.
func (q candidateQuery) walk(visit func(models.Span) bool) {
	if q.duration <= 0 || q.stride <= 0 {
		return
	}
	for start := alignUp(q.window.Start, q.stride); !start.Add(q.duration).After(q.window.End); start = start.Add(q.stride) {
		span := models.NewSpan(start, q.duration)
		if q.sleep != nil && q.sleep.Intersects(span) {
			continue
		}
		if q.occupied.Conflicts(span, q.excludeID) {
			continue
		}
		if !visit(span) {
			return
		}
	}
}

// Candidates enumerates conflict-free spans of length duration inside window,
// starting on the stride grid. Spans touching sleep are skipped when sleep is set.
func Candidates(window models.Span, duration, stride time.Duration, occupied Snapshot, excludeID string, sleep *models.DailyWindow) []models.Span {
	var out []models.Span
	candidateQuery{
		window:    window,
		duration:  duration,
		stride:    stride,
		occupied:  occupied,
		excludeID: excludeID,
		sleep:     sleep,
	}.walk(func(span models.Span) bool {
		out = append(out, span)
		return true
	})
	return out
}
