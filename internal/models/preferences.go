package models

import (
	"fmt"
	"time"
)

// AllowedRounding lists the supported candidate grid sizes in minutes.
var AllowedRounding = []int{5, 10, 15, 30}

// Preferences holds the user's scheduling windows.
type Preferences struct {
	Work            DailyWindow `json:"work"`
	Sleep           DailyWindow `json:"sleep"`
	RoundingMinutes int         `json:"round_to_minutes"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// DefaultPreferences returns work 09:00-18:00, sleep 23:00-07:00, 5 minute grid.
func DefaultPreferences() Preferences {
	return Preferences{
		Work:            DailyWindow{Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("18:00")},
		Sleep:           DailyWindow{Start: MustTimeOfDay("23:00"), End: MustTimeOfDay("07:00")},
		RoundingMinutes: 5,
	}
}

// Validate rejects unsupported rounding and an overnight work window.
func (p Preferences) Validate() error {
	allowed := false
	for _, v := range AllowedRounding {
		if p.RoundingMinutes == v {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("round_to_minutes must be one of %v", AllowedRounding)
	}
	if p.Work.Overnight() {
		return fmt.Errorf("work window %s must end after it starts", p.Work)
	}
	return nil
}

// Granularity returns the rounding grid, falling back to 5 minutes.
func (p Preferences) Granularity() time.Duration {
	if p.RoundingMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.RoundingMinutes) * time.Minute
}
