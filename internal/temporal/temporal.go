// Package temporal derives behavior modifiers from the simulated clock:
// meal periods, weekends, holidays, and seasons. Pure functions over a
// timestamp; no internal state beyond the static calendar tables.
package temporal

import (
	"time"

	"github.com/talgya/luna-sim/internal/actors"
)

// MealPeriod names a block of the dining day.
type MealPeriod string

const (
	Breakfast    MealPeriod = "breakfast"
	Lunch        MealPeriod = "lunch"
	Afternoon    MealPeriod = "afternoon"
	Dinner       MealPeriod = "dinner"
	LateNight    MealPeriod = "late_night"
	EarlyMorning MealPeriod = "early_morning"
)

// Season names a quarter of the year.
type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Fall   Season = "fall"
)

// Holiday describes a calendar date with elevated dining activity.
type Holiday struct {
	Name   string
	Impact string // low, medium, high
}

// holidays keys are (month, day).
var holidays = map[[2]int]Holiday{
	{1, 1}:   {"New Year's Day", "high"},
	{2, 14}:  {"Valentine's Day", "high"},
	{7, 4}:   {"Independence Day", "medium"},
	{10, 31}: {"Halloween", "medium"},
	{11, 25}: {"Thanksgiving", "high"},
	{12, 25}: {"Christmas", "high"},
	{12, 31}: {"New Year's Eve", "high"},
}

// Context is the time-derived state the behavior engine consumes.
type Context struct {
	Hour        int          `json:"hour"`
	Weekday     time.Weekday `json:"weekday"`
	MealPeriod  MealPeriod   `json:"meal_period"`
	Season      Season       `json:"season"`
	IsWeekend   bool         `json:"is_weekend"`
	IsHoliday   bool         `json:"is_holiday"`
	HolidayName string       `json:"holiday_name,omitempty"`

	holidayImpact string
}

// ContextAt derives the full time context for a simulated timestamp.
func ContextAt(t time.Time) Context {
	ctx := Context{
		Hour:       t.Hour(),
		Weekday:    t.Weekday(),
		MealPeriod: mealPeriod(t.Hour()),
		Season:     SeasonOf(t.Month()),
		IsWeekend:  t.Weekday() == time.Saturday || t.Weekday() == time.Sunday,
	}
	if h, ok := holidays[[2]int{int(t.Month()), t.Day()}]; ok {
		ctx.IsHoliday = true
		ctx.HolidayName = h.Name
		ctx.holidayImpact = h.Impact
	}
	return ctx
}

func mealPeriod(hour int) MealPeriod {
	switch {
	case hour < 6:
		return EarlyMorning
	case hour < 11:
		return Breakfast
	case hour < 15:
		return Lunch
	case hour < 18:
		return Afternoon
	case hour < 22:
		return Dinner
	default:
		return LateNight
	}
}

// SeasonOf maps a month to its season.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Fall
	}
}

// mealMods multiplies action weights by dining-day rhythm.
var mealMods = map[MealPeriod]map[actors.Action]float64{
	Breakfast: {
		actors.ActionBrowse:       1.1,
		actors.ActionCheckFriends: 0.8,
		actors.ActionSendInvite:   0.7,
		actors.ActionMakeBooking:  0.9,
	},
	Lunch: {
		actors.ActionBrowse:          1.5,
		actors.ActionMakeBooking:     1.5,
		actors.ActionSendInvite:      0.9,
		actors.ActionExpressInterest: 1.2,
	},
	Afternoon: {
		actors.ActionBrowse:          1.2,
		actors.ActionCheckFriends:    1.1,
		actors.ActionExpressInterest: 1.1,
	},
	Dinner: {
		actors.ActionBrowse:          1.3,
		actors.ActionSendInvite:      1.3,
		actors.ActionMakeBooking:     1.4,
		actors.ActionExpressInterest: 1.2,
		actors.ActionCheckFriends:    1.2,
	},
	LateNight: {
		actors.ActionBrowse:       0.8,
		actors.ActionCheckFriends: 1.3,
		actors.ActionSendInvite:   1.2,
		actors.ActionMakeBooking:  0.6,
	},
	EarlyMorning: {
		actors.ActionBrowse:          0.5,
		actors.ActionCheckFriends:    0.4,
		actors.ActionSendInvite:      0.3,
		actors.ActionMakeBooking:     0.3,
		actors.ActionExpressInterest: 0.4,
		actors.ActionRespondInvite:   0.5,
	},
}

var seasonMods = map[Season]map[actors.Action]float64{
	Summer: {
		actors.ActionBrowse:          1.15,
		actors.ActionSendInvite:      1.1,
		actors.ActionExpressInterest: 1.1,
	},
	Winter: {
		actors.ActionBrowse:      1.05,
		actors.ActionMakeBooking: 1.1,
	},
	Spring: {
		actors.ActionBrowse:          1.1,
		actors.ActionExpressInterest: 1.05,
	},
	Fall: {
		actors.ActionBrowse:      1.05,
		actors.ActionMakeBooking: 1.05,
	},
}

var holidayImpact = map[string]float64{
	"low":    1.1,
	"medium": 1.3,
	"high":   1.5,
}

// Mods builds the temporal modifier vector for a context.
func Mods(ctx Context) actors.Modifiers {
	m := actors.NoModifiers()

	for action, factor := range mealMods[ctx.MealPeriod] {
		m.Scale(action, factor)
	}

	if ctx.IsWeekend {
		m.Scale(actors.ActionSendInvite, 1.3)
		m.Scale(actors.ActionCheckFriends, 1.2)
		m.Scale(actors.ActionMakeBooking, 1.15)

		// Saturday brunch hours are busy; Sunday is slower paced.
		if ctx.Weekday == time.Saturday && (ctx.MealPeriod == Breakfast || ctx.MealPeriod == Lunch) {
			m.Scale(actors.ActionBrowse, 1.4)
			m.Scale(actors.ActionExpressInterest, 1.3)
			m.Scale(actors.ActionMakeBooking, 1.5)
		}
		if ctx.Weekday == time.Sunday {
			m.Scale(actors.ActionBrowse, 1.2)
			m.Scale(actors.ActionExpressInterest, 1.1)
		}
	}

	if ctx.IsHoliday {
		base := holidayBase(ctx)
		m.Scale(actors.ActionSendInvite, base)
		m.Scale(actors.ActionCheckFriends, base*0.9)
		m.Scale(actors.ActionExpressInterest, base*0.8)

		switch ctx.HolidayName {
		case "Valentine's Day":
			m.Scale(actors.ActionSendInvite, 1.3)
			m.Scale(actors.ActionMakeBooking, 1.5)
		case "Thanksgiving", "Christmas":
			m.Scale(actors.ActionCheckFriends, 1.4)
			m.Scale(actors.ActionBrowse, 0.8)
		case "New Year's Eve":
			m.Scale(actors.ActionSendInvite, 1.6)
			m.Scale(actors.ActionMakeBooking, 1.4)
		}
	}

	for action, factor := range seasonMods[ctx.Season] {
		m.Scale(action, factor)
	}

	return m
}

func holidayBase(ctx Context) float64 {
	if f, ok := holidayImpact[ctx.holidayImpact]; ok {
		return f
	}
	return 1.2
}

// VenueMods describes how the time context squeezes venue supply.
type VenueMods struct {
	Availability float64 `json:"availability_factor"` // <1 = fewer open slots
	WaitTime     float64 `json:"wait_time_factor"`    // >1 = longer waits
	Price        float64 `json:"price_factor"`        // >1 = surge pricing
}

// VenueModsFor returns the supply-side modifiers for a time context.
func VenueModsFor(ctx Context) VenueMods {
	v := VenueMods{Availability: 1, WaitTime: 1, Price: 1}

	if ctx.MealPeriod == Lunch || ctx.MealPeriod == Dinner {
		v.Availability *= 0.7
		v.WaitTime *= 1.3
	}
	if ctx.IsWeekend {
		v.Availability *= 0.8
		v.WaitTime *= 1.2
	}
	if ctx.IsHoliday {
		v.Availability *= 0.5
		v.WaitTime *= 1.5
		v.Price *= 1.2
	}
	return v
}
