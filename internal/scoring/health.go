package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/extraction017/temporav3/internal/models"
)

// Health dimension weights.
const (
	weightWorkLife = 0.25
	weightSleep    = 0.20
	weightFocus    = 0.20
	weightMeetings = 0.15
	weightRecovery = 0.20
)

const (
	focusBlockMinutes = 90
	backToBackMinutes = 10
	recoveryGapMinute = 5
)

// HealthScorer grades sustainability: work/life balance, sleep, focus time,
// meeting load and active recovery.
type HealthScorer struct{}

// NewHealthScorer returns a HealthScorer.
func NewHealthScorer() HealthScorer {
	return HealthScorer{}
}

// Name implements Scorer.
func (HealthScorer) Name() string { return "health" }

// Score implements Scorer.
func (h HealthScorer) Score(events []models.Event, prefs models.Preferences) int {
	return h.Evaluate(events, prefs).Score
}

// Evaluate computes the full health report.
func (HealthScorer) Evaluate(events []models.Event, prefs models.Preferences) Report {
	set := partition(events)
	report := newReport("health")

	if len(set.work)+len(set.meetings)+len(set.recreational)+len(set.meals) == 0 {
		for _, k := range []string{"work_life", "sleep_respect", "focus_blocks", "meetings", "recovery"} {
			report.Breakdown[k] = 0
		}
		report.issue("No events scheduled - cannot assess health metrics")
		report.suggest("Schedule work inside your work window and add recreational and meal events")
		return report
	}

	wl := workLife(set, prefs)
	sl := sleepRespect(set, prefs)
	fb := focusBlocks(set)
	mt := meetingLoad(set)
	rc := recovery(set)

	composite := weightWorkLife*float64(wl.score) +
		weightSleep*float64(sl.score) +
		weightFocus*float64(fb.score) +
		weightMeetings*float64(mt.score) +
		weightRecovery*float64(rc.score)

	report.Score = int(math.Round(composite))
	report.Breakdown["work_life"] = wl.score
	report.Breakdown["sleep_respect"] = sl.score
	report.Breakdown["focus_blocks"] = fb.score
	report.Breakdown["meetings"] = mt.score
	report.Breakdown["recovery"] = rc.score

	report.Stats["work_hours"] = round1(wl.hours)
	report.Stats["meeting_hours"] = round1(mt.hours)
	report.Stats["recovery_hours"] = round1(rc.activeHours)
	report.Stats["sleep_intrusions"] = float64(sl.count)
	report.Stats["focus_hours"] = round1(fb.hours)

	switch {
	case wl.hours >= 55:
		report.issue(fmt.Sprintf("Excessive work hours (%.1fh/week)", wl.hours))
	case wl.hours >= 50:
		report.issue(fmt.Sprintf("High work hours (%.1fh/week)", wl.hours))
	}
	if wl.longDays > 1 {
		report.issue(fmt.Sprintf("%d days with more than 10h of work", wl.longDays))
	}
	if wl.offHours > 2 {
		report.issue(fmt.Sprintf("%.1fh of weekend or night work", wl.offHours))
	}
	if sl.count > 0 {
		report.issue(fmt.Sprintf("%d events during sleep window (%.1fh)", sl.count, sl.hours))
	}
	if fb.hours < 4 {
		report.issue(fmt.Sprintf("Only %.1fh of deep focus time", fb.hours))
	}
	if mt.backToBack > 3 {
		report.issue(fmt.Sprintf("%d back-to-back meetings", mt.backToBack))
	}
	if rc.activeHours < 3.5 {
		report.issue(fmt.Sprintf("Only %.1fh active recovery", rc.activeHours))
	}

	if wl.hours > 50 {
		report.suggest(fmt.Sprintf("Reduce work hours to 45h/week (-%.1fh)", wl.hours-45))
	}
	if sl.count > 0 {
		report.suggest(fmt.Sprintf("Move %d events outside the sleep window (%s)", sl.count, prefs.Sleep))
	}
	if fb.hours < 8 {
		report.suggest(fmt.Sprintf("Add %.1fh of 90+ min focus blocks", 8-fb.hours))
	}
	if mt.backToBack > 0 {
		report.suggest(fmt.Sprintf("Add 10-min breaks between meetings to clear %d back-to-backs", mt.backToBack))
	}
	if rc.activeHours < 7 {
		report.suggest(fmt.Sprintf("Add %.1fh of recreational or meal events", 7-rc.activeHours))
	}
	return report
}

type workLifeResult struct {
	score    int
	hours    float64
	longDays int
	offHours float64
}

func workLife(set eventSet, prefs models.Preferences) workLifeResult {
	work := concat(set.work, set.meetings)
	if len(work) == 0 {
		if len(set.recreational) > 0 || len(set.meals) > 0 {
			return workLifeResult{score: 85}
		}
		return workLifeResult{}
	}

	hours := totalMinutes(work) / 60
	var base float64
	switch {
	case hours >= 35 && hours <= 45:
		base = 100
	case hours > 45 && hours <= 55:
		base = 100 - (hours-45)/10*30
	case hours < 35:
		base = 100 - (35-hours)/5*5
	case hours <= 65:
		base = 40 - (hours-55)/10*10
	default:
		base = clampLow(30-(hours-65)/5*5, 0)
	}

	daily := map[string]float64{}
	var offMinutes float64
	for _, e := range work {
		daily[e.Start.Format("2006-01-02")] += e.Duration().Hours()
		wd := e.Start.Weekday()
		if wd == time.Saturday || wd == time.Sunday || !prefs.Work.Contains(e.Start) {
			offMinutes += e.Duration().Minutes()
		}
	}
	longDays := 0
	for _, h := range daily {
		if h > 10 {
			longDays++
		}
	}
	longPenalty := clampLow(float64(longDays-1)*3, 0)
	final := clampLow(base-longPenalty-offMinutes/60, 0)

	return workLifeResult{
		score:    int(final),
		hours:    hours,
		longDays: longDays,
		offHours: offMinutes / 60,
	}
}

type sleepResult struct {
	score int
	hours float64
	count int
}

func sleepRespect(set eventSet, prefs models.Preferences) sleepResult {
	var res sleepResult
	for _, e := range set.all {
		if overlap := prefs.Sleep.Overlap(e.Span); overlap > 0 {
			res.hours += overlap.Hours()
			res.count++
		}
	}
	res.score = int(clampLow(100-res.hours*10, 0))
	return res
}

type focusResult struct {
	score  int
	hours  float64
	blocks int
}

func focusBlocks(set eventSet) focusResult {
	if len(set.work) == 0 {
		return focusResult{}
	}
	var res focusResult
	for _, e := range set.work {
		if e.Duration().Minutes() >= focusBlockMinutes && !overlapsAny(e, set.meetings) {
			res.hours += e.Duration().Hours()
			res.blocks++
		}
	}

	var score float64
	switch {
	case res.hours >= 8:
		score = 100
	case res.hours >= 4:
		score = 80 + (res.hours-4)/4*20
	case res.hours >= 2:
		score = 60 + (res.hours-2)/2*20
	case res.hours > 0:
		score = 40
	}
	res.score = int(score)
	return res
}

type meetingResult struct {
	score      int
	hours      float64
	share      float64
	backToBack int
	long       int
}

func meetingLoad(set eventSet) meetingResult {
	work := concat(set.work, set.meetings)
	if len(work) == 0 {
		return meetingResult{}
	}
	if len(set.meetings) == 0 {
		return meetingResult{score: 100}
	}

	meetingMinutes := totalMinutes(set.meetings)
	share := meetingMinutes / totalMinutes(work)
	var base float64
	switch {
	case share <= 0.30:
		base = 100 - share*50
	case share <= 0.50:
		base = 85 - (share-0.30)/0.20*25
	default:
		base = 60 - (share-0.50)/0.50*30
	}

	res := meetingResult{hours: meetingMinutes / 60, share: share}
	for i := 0; i+1 < len(set.meetings); i++ {
		gap := set.meetings[i+1].Start.Sub(set.meetings[i].End).Minutes()
		if gap >= 0 && gap < backToBackMinutes {
			res.backToBack++
		}
	}
	for _, m := range set.meetings {
		if m.Duration().Minutes() > 60 {
			res.long++
		}
	}
	b2bPenalty := math.Min(float64(res.backToBack*2), 20)
	longPenalty := math.Min(float64(res.long), 10)
	res.score = int(clampLow(base-b2bPenalty-longPenalty, 0))
	return res
}

type recoveryResult struct {
	score       int
	activeHours float64
}

func recovery(set eventSet) recoveryResult {
	active := concat(set.recreational, set.meals)
	hours := totalMinutes(active) / 60

	var activeScore float64
	switch {
	case len(active) == 0:
	case hours >= 7 && hours <= 14:
		activeScore = 100
	case hours > 14:
		activeScore = clampLow(100-(hours-14)*2, 0)
	case hours >= 3.5:
		activeScore = 50 + hours/7*50
	default:
		activeScore = hours / 3.5 * 50
	}

	meetingGap := followedByGapRatio(set.meetings, set.all)
	var long []models.Event
	for _, e := range set.work {
		if e.Duration().Minutes() >= focusBlockMinutes {
			long = append(long, e)
		}
	}
	workGap := followedByGapRatio(long, set.all)

	final := activeScore*0.80 + meetingGap*0.15 + workGap*0.05
	return recoveryResult{score: int(final), activeHours: hours}
}

// followedByGapRatio is the share, 0-100, of events whose next event starts
// at least five minutes later. An empty input scores 100.
func followedByGapRatio(events, all []models.Event) float64 {
	if len(events) == 0 {
		return 100
	}
	n := 0
	for _, e := range events {
		if gap, ok := gapAfter(e, all); ok && gap >= recoveryGapMinute {
			n++
		}
	}
	return float64(n) / float64(len(events)) * 100
}
