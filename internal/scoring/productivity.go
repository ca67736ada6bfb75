package scoring

import (
	"fmt"
	"math"

	"github.com/extraction017/temporav3/internal/models"
)

// Productivity dimension weights.
const (
	weightBlocks        = 0.35
	weightFragmentation = 0.15
	weightBalance       = 0.20
	weightMeetingFlow   = 0.20
	weightRecoverySup   = 0.10
)

const (
	transitionCostMinutes = 15
	shortGapMinutes       = 15
	meetingFollowUp       = 120
	safeWorkHours         = 50
)

// ProductivityScorer grades how efficiently time is allocated: deep work,
// context switching, utilization, meeting follow-up and recovery.
type ProductivityScorer struct{}

// NewProductivityScorer returns a ProductivityScorer.
func NewProductivityScorer() ProductivityScorer {
	return ProductivityScorer{}
}

// Name implements Scorer.
func (ProductivityScorer) Name() string { return "productivity" }

// Score implements Scorer.
func (p ProductivityScorer) Score(events []models.Event, prefs models.Preferences) int {
	return p.Evaluate(events, prefs).Score
}

// Evaluate computes the full productivity report. Meals are ignored.
func (ProductivityScorer) Evaluate(events []models.Event, prefs models.Preferences) Report {
	set := partition(events)
	report := newReport("productivity")

	tracked := concat(set.work, set.meetings, set.personal, set.recreational)
	sortByStart(tracked)
	if len(tracked) == 0 {
		for _, k := range []string{"block_structure", "fragmentation", "schedule_balance", "meeting_efficiency", "recovery_support"} {
			report.Breakdown[k] = 0
		}
		report.issue("No events scheduled - cannot assess productivity")
		return report
	}

	bs := blockStructure(set)
	fr := fragmentation(tracked)
	sb := scheduleBalance(set, tracked, prefs)
	me := meetingEfficiency(set)
	rs := recoverySupport(set)

	composite := weightBlocks*float64(bs.score) +
		weightFragmentation*float64(fr.score) +
		weightBalance*float64(sb.score) +
		weightMeetingFlow*float64(me.score) +
		weightRecoverySup*float64(rs.score)

	report.Score = int(math.Round(composite))
	report.Breakdown["block_structure"] = bs.score
	report.Breakdown["fragmentation"] = fr.score
	report.Breakdown["schedule_balance"] = sb.score
	report.Breakdown["meeting_efficiency"] = me.score
	report.Breakdown["recovery_support"] = rs.score

	report.Stats["deep_work_hours"] = round1(bs.hours)
	report.Stats["context_switches"] = float64(fr.transitions)
	report.Stats["fragmented_hours"] = round1(fr.lostHours)
	report.Stats["utilization"] = round1(sb.utilization * 100)
	report.Stats["work_hours"] = round1(sb.workHours)

	if bs.hours < 6 {
		report.issue(fmt.Sprintf("Only %.1fh of deep work blocks", bs.hours))
	}
	if fr.transitions > 20 {
		report.issue(fmt.Sprintf("%d context switches cost about %.1fh", fr.transitions, fr.lostHours))
	}
	if fr.shortGaps > 5 {
		report.issue(fmt.Sprintf("%d short gaps under 15 min", fr.shortGaps))
	}
	if slack := (1 - sb.utilization) * 100; slack < 2 {
		report.issue(fmt.Sprintf("Over-scheduled: only %.1f%% slack", slack))
	} else if slack > 20 {
		report.issue(fmt.Sprintf("Under-scheduled: %.1f%% idle time", slack))
	}
	if me.orphaned > 2 {
		report.issue(fmt.Sprintf("%d meetings with no follow-up work", me.orphaned))
	}
	if rs.hours < 7 {
		report.issue(fmt.Sprintf("Only %.1fh recovery time", rs.hours))
	}

	if bs.hours < 10 {
		report.suggest(fmt.Sprintf("Add %.1fh of 90+ min work blocks", 10-bs.hours))
	}
	if fr.transitions > 15 {
		report.suggest("Batch similar categories to cut context switches")
	}
	if me.orphaned > 0 {
		report.suggest(fmt.Sprintf("Schedule follow-up work after %d meetings", me.orphaned))
	}
	if sb.workHours > safeWorkHours {
		report.suggest(fmt.Sprintf("Cut %.1fh of work to stay under 50h/week", sb.workHours-safeWorkHours))
	}
	return report
}

type blockResult struct {
	score  int
	hours  float64
	blocks int
}

func blockStructure(set eventSet) blockResult {
	if len(set.work) == 0 {
		return blockResult{}
	}
	var res blockResult
	for _, e := range set.work {
		if e.Duration().Minutes() >= focusBlockMinutes && !overlapsAny(e, set.meetings) {
			res.hours += e.Duration().Hours()
			res.blocks++
		}
	}
	var score float64
	switch {
	case res.hours >= 10:
		score = 100
	case res.hours >= 6:
		score = 80 + (res.hours-6)/4*20
	case res.hours >= 3:
		score = 60 + (res.hours-3)/3*20
	default:
		score = res.hours / 3 * 60
	}
	res.score = int(score)
	return res
}

type fragmentationResult struct {
	score       int
	transitions int
	weighted    float64
	shortGaps   int
	lostHours   float64
}

func fragmentation(sorted []models.Event) fragmentationResult {
	switch len(sorted) {
	case 0:
		return fragmentationResult{}
	case 1:
		return fragmentationResult{score: 100}
	}

	var res fragmentationResult
	for i := 0; i+1 < len(sorted); i++ {
		cur, next := sorted[i], sorted[i+1]
		gap := next.Start.Sub(cur.End).Minutes()
		if gap >= 0 && gap < shortGapMinutes {
			res.shortGaps++
		}
		if cur.Category == next.Category {
			continue
		}
		res.transitions++

		avg := (cur.Duration().Minutes() + next.Duration().Minutes()) / 2
		weight := 1.0
		switch {
		case avg < 30:
			weight = 2.0
		case avg < 60:
			weight = 1.5
		}
		if cur.Category.Productive() && next.Category.Productive() {
			weight *= 0.5
		}
		res.weighted += weight
	}

	var score float64
	w := res.weighted
	switch {
	case w <= 15:
		score = 100
	case w <= 30:
		score = 100 - (w-15)/15*20
	case w <= 50:
		score = 80 - (w-30)/20*20
	default:
		score = clampLow(60-(w-50)/30*30, 0)
	}
	penalty := math.Min(float64(res.shortGaps*2), 20)
	res.score = int(clampLow(score-penalty, 0))
	res.lostHours = (w*transitionCostMinutes + float64(res.shortGaps)*5) / 60
	return res
}

type balanceResult struct {
	score       int
	utilization float64
	workHours   float64
}

func scheduleBalance(set eventSet, tracked []models.Event, prefs models.Preferences) balanceResult {
	scheduled := totalMinutes(tracked)
	available := float64(prefs.Work.Minutes() * 7)
	util := 0.0
	if available > 0 {
		util = scheduled / available
	}

	var score float64
	switch {
	case util >= 0.75 && util <= 0.85:
		score = 100
	case util >= 0.70 && util < 0.75:
		score = 90 + (util-0.70)/0.05*10
	case util > 0.85 && util <= 0.90:
		score = 90 - (util-0.85)/0.05*10
	case util >= 0.65 && util < 0.70:
		score = 75 + (util-0.65)/0.05*15
	case util > 0.90 && util <= 0.95:
		score = 70 - (util-0.90)/0.05*20
	case util > 0.95:
		score = math.Max(30, 70-(util-0.95)*200)
	default:
		score = math.Max(40, util/0.65*75)
	}

	workHours := totalMinutes(concat(set.work, set.meetings)) / 60
	if workHours > safeWorkHours {
		var penalty float64
		if workHours <= 60 {
			penalty = (workHours - safeWorkHours) * 3
		} else {
			penalty = 30 + (workHours-60)*5
		}
		score = math.Max(20, score-penalty)
	}
	return balanceResult{score: int(score), utilization: util, workHours: workHours}
}

type meetingFlowResult struct {
	score    int
	flow     int
	orphaned int
}

func meetingEfficiency(set eventSet) meetingFlowResult {
	if len(set.meetings) == 0 {
		if len(set.work) > 0 {
			return meetingFlowResult{score: 100}
		}
		return meetingFlowResult{}
	}

	var res meetingFlowResult
	for _, m := range set.meetings {
		followed := false
		for _, w := range set.work {
			gap := w.Start.Sub(m.End).Minutes()
			if gap >= 0 && gap <= meetingFollowUp {
				followed = true
				break
			}
		}
		if followed {
			res.flow++
		} else {
			res.orphaned++
		}
	}

	ratio := float64(res.flow) / float64(len(set.meetings))
	var score float64
	switch {
	case ratio >= 0.70:
		score = 100
	case ratio >= 0.50:
		score = 80 + (ratio-0.50)/0.20*20
	case ratio >= 0.30:
		score = 60 + (ratio-0.30)/0.20*20
	default:
		score = ratio / 0.30 * 60
	}
	res.score = int(score)
	return res
}

type recoverySupportResult struct {
	score int
	hours float64
}

func recoverySupport(set eventSet) recoverySupportResult {
	hours := totalMinutes(concat(set.personal, set.recreational)) / 60
	var score float64
	switch {
	case hours >= 10:
		score = 100
	case hours >= 7:
		score = 80 + (hours-7)/3*20
	case hours >= 4:
		score = 50 + (hours-4)/3*30
	default:
		score = hours / 4 * 50
	}
	return recoverySupportResult{score: int(score), hours: hours}
}
