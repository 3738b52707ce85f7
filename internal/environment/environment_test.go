package environment

import (
	"testing"
	"time"

	"github.com/talgya/luna-sim/internal/actors"
)

func TestWeatherDeterministicWithinHour(t *testing.T) {
	p := NewProvider(42)
	base := time.Date(2026, time.July, 10, 14, 0, 0, 0, time.UTC)

	a := p.WeatherAt(base)
	b := p.WeatherAt(base.Add(30 * time.Minute))
	if a != b {
		t.Errorf("weather changed within the hour: %+v vs %+v", a, b)
	}

	c := NewProvider(42).WeatherAt(base)
	if a != c {
		t.Errorf("weather differs across identically seeded providers: %+v vs %+v", a, c)
	}
}

func TestWeatherStaysInSeasonalBand(t *testing.T) {
	p := NewProvider(7)
	for day := 1; day <= 28; day++ {
		for _, hour := range []int{3, 9, 15, 21} {
			w := p.WeatherAt(time.Date(2026, time.January, day, hour, 0, 0, 0, time.UTC))
			if w.Temperature < 25 || w.Temperature > 45 {
				t.Errorf("winter temperature %.1f outside [25,45]", w.Temperature)
			}
			if w.Condition == "" {
				t.Error("empty weather condition")
			}
		}
	}
}

func TestTrafficRushHourHeavierThanNight(t *testing.T) {
	p := NewProvider(1)
	// Wednesday.
	rush := p.TrafficAt(time.Date(2026, time.June, 3, 8, 0, 0, 0, time.UTC))
	night := p.TrafficAt(time.Date(2026, time.June, 3, 1, 0, 0, 0, time.UTC))

	if rush.Congestion <= night.Congestion {
		t.Errorf("rush congestion %.2f not above night %.2f", rush.Congestion, night.Congestion)
	}
	if rush.Level != "high" {
		t.Errorf("8am weekday traffic level %q, want high", rush.Level)
	}
}

func TestWeekendTrafficLighter(t *testing.T) {
	p := NewProvider(1)
	// June 6 2026 is a Saturday.
	weekend := p.TrafficAt(time.Date(2026, time.June, 6, 8, 0, 0, 0, time.UTC))

	if weekend.Level == "high" {
		t.Errorf("weekend rush hour level %q, want downgraded", weekend.Level)
	}
}

func TestEventsDeterministicPerDay(t *testing.T) {
	p := NewProvider(11)
	evening := time.Date(2026, time.August, 1, 19, 0, 0, 0, time.UTC)

	a := p.EventsAt(evening)
	b := p.EventsAt(evening)
	if len(a) != len(b) {
		t.Fatalf("event presence not stable: %d vs %d", len(a), len(b))
	}
	if len(a) == 1 {
		if a[0].Name != b[0].Name || !a[0].Start.Equal(b[0].Start) {
			t.Errorf("event differs across calls: %+v vs %+v", a[0], b[0])
		}
		if !a[0].End.After(a[0].Start) {
			t.Errorf("event ends %v before it starts %v", a[0].End, a[0].Start)
		}
	}
}

func TestSomeDaysHostEvents(t *testing.T) {
	p := NewProvider(5)
	days := 0
	for day := 1; day <= 28; day++ {
		if len(p.EventsAt(time.Date(2026, time.August, day, 19, 0, 0, 0, time.UTC))) > 0 {
			days++
		}
	}
	if days == 0 {
		t.Error("no event days in a month; expected roughly 30% of evenings")
	}
	if days > 20 {
		t.Errorf("%d of 28 days host events; expected roughly 30%%", days)
	}
}

func TestSnowSuppressesSocialActions(t *testing.T) {
	snow := Conditions{Weather: Weather{Condition: "snow", Temperature: 30}}
	clear := Conditions{Weather: Weather{Condition: "sunny", Temperature: 72}}

	sm := Mods(snow)
	cm := Mods(clear)
	if sm[actors.ActionSendInvite] >= cm[actors.ActionSendInvite] {
		t.Errorf("snow invite modifier %.3f not below sunny %.3f",
			sm[actors.ActionSendInvite], cm[actors.ActionSendInvite])
	}
}

func TestExtremeHeatSuppressesEverything(t *testing.T) {
	m := Mods(Conditions{Weather: Weather{Condition: "sunny", Temperature: 100}})
	for i, v := range m {
		if v >= 1.0 {
			t.Errorf("action %s modifier %.3f under extreme heat, want < 1", actors.Action(i), v)
		}
	}
}
