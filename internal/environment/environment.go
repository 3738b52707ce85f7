// Package environment simulates weather, traffic, and special events for
// the behavior engine. All outputs are deterministic functions of the
// simulated timestamp and the provider seed.
package environment

import (
	"math"
	"math/rand"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/luna-sim/internal/actors"
	"github.com/talgya/luna-sim/internal/temporal"
)

// Weather holds simulated atmospheric conditions.
type Weather struct {
	Condition     string  `json:"condition"`     // sunny, cloudy, rainy, snow
	Temperature   float64 `json:"temperature"`   // Fahrenheit
	Humidity      float64 `json:"humidity"`      // 0-100
	Precipitation float64 `json:"precipitation"` // 0-1 probability
	WindSpeed     float64 `json:"wind_speed"`    // mph
}

// Traffic holds simulated road conditions.
type Traffic struct {
	Level        string  `json:"level"` // low, medium, high
	DelayMinutes float64 `json:"delay_minutes"`
	Congestion   float64 `json:"congestion_factor"` // 1.0 = normal
}

// SpecialEvent is a nearby happening that pulls dining demand.
type SpecialEvent struct {
	EventType  string    `json:"event_type"` // concert, sports, festival
	Name       string    `json:"name"`
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
	Attendance int       `json:"expected_attendance"`
}

// Conditions aggregates the full environmental context at a point in time.
type Conditions struct {
	Weather Weather        `json:"weather"`
	Traffic Traffic        `json:"traffic"`
	Events  []SpecialEvent `json:"special_events"`
}

type seasonalBand struct {
	conditions [4]string // weighted draw: repeated entries raise odds
	tempMin    float64
	tempMax    float64
	humidMin   float64
	humidMax   float64
}

var seasonalWeather = map[temporal.Season]seasonalBand{
	temporal.Winter: {[4]string{"sunny", "cloudy", "snow", "cloudy"}, 25, 45, 30, 60},
	temporal.Spring: {[4]string{"sunny", "cloudy", "rainy", "sunny"}, 45, 70, 40, 70},
	temporal.Summer: {[4]string{"sunny", "sunny", "cloudy", "rainy"}, 70, 95, 50, 80},
	temporal.Fall:   {[4]string{"sunny", "cloudy", "rainy", "cloudy"}, 45, 70, 40, 65},
}

type trafficBand struct {
	level  string
	factor float64
}

// trafficPatterns keys are hours of day; unlisted hours are medium/1.0.
var trafficPatterns = map[int]trafficBand{
	7:  {"high", 1.8},
	8:  {"high", 2.0},
	9:  {"medium", 1.5},
	12: {"medium", 1.3},
	13: {"medium", 1.2},
	17: {"high", 2.0},
	18: {"high", 1.8},
	19: {"medium", 1.4},
	22: {"low", 0.8},
	23: {"low", 0.7},
	0:  {"low", 0.6},
	1:  {"low", 0.5},
}

var sampleEvents = []SpecialEvent{
	{EventType: "concert", Name: "Summer Music Festival", Attendance: 5000},
	{EventType: "sports", Name: "Basketball Game", Attendance: 20000},
	{EventType: "festival", Name: "Food & Wine Festival", Attendance: 3000},
}

var eventDurations = map[string]time.Duration{
	"concert":  4 * time.Hour,
	"sports":   3 * time.Hour,
	"festival": 6 * time.Hour,
}

// Provider generates environmental conditions. Smooth quantities
// (temperature, congestion jitter) come from simplex noise over simulated
// time; discrete draws use an hour- or day-keyed seed so conditions are
// stable within their window.
type Provider struct {
	seed      int64
	tempNoise opensimplex.Noise
	windNoise opensimplex.Noise
}

// NewProvider creates an environment provider with the given seed.
func NewProvider(seed int64) *Provider {
	return &Provider{
		seed:      seed,
		tempNoise: opensimplex.NewNormalized(seed),
		windNoise: opensimplex.NewNormalized(seed + 1),
	}
}

// WeatherAt returns weather for a simulated timestamp. Constant within a
// simulated hour.
func (p *Provider) WeatherAt(t time.Time) Weather {
	band := seasonalWeather[temporal.SeasonOf(t.Month())]

	hourKey := t.Unix() / 3600
	rng := rand.New(rand.NewSource(p.seed ^ hourKey))

	condition := band.conditions[rng.Intn(len(band.conditions))]

	// Diurnal curve peaks mid-afternoon; noise adds day-to-day drift.
	hour := float64(t.Hour())
	diurnal := math.Sin((hour-6)*math.Pi/12) * 10
	drift := (p.tempNoise.Eval2(float64(hourKey)/24, 0) - 0.5) * 10
	base := (band.tempMin + band.tempMax) / 2
	temp := clampF(base+diurnal+drift, band.tempMin, band.tempMax)

	humidity := band.humidMin + rng.Float64()*(band.humidMax-band.humidMin)

	var precip float64
	switch condition {
	case "rainy":
		precip = 0.3 + rng.Float64()*0.5
	case "snow":
		precip = 0.2 + rng.Float64()*0.4
	case "cloudy":
		precip = rng.Float64() * 0.2
	}

	wind := p.windNoise.Eval2(float64(hourKey)/12, 1) * 15
	if condition == "rainy" || condition == "snow" {
		wind += 5 + rng.Float64()*10
	}

	return Weather{
		Condition:     condition,
		Temperature:   math.Round(temp*10) / 10,
		Humidity:      math.Round(humidity*10) / 10,
		Precipitation: math.Round(precip*100) / 100,
		WindSpeed:     math.Round(wind*10) / 10,
	}
}

// TrafficAt returns road conditions for a simulated timestamp.
func (p *Provider) TrafficAt(t time.Time) Traffic {
	band, ok := trafficPatterns[t.Hour()]
	if !ok {
		band = trafficBand{"medium", 1.0}
	}

	level, factor := band.level, band.factor
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		if level == "high" {
			level = "medium"
		}
		factor *= 0.7
	}

	// Congestion jitter from noise, ±20%.
	hourKey := t.Unix() / 3600
	jitter := 0.8 + p.windNoise.Eval2(float64(hourKey)/6, 2)*0.4
	factor *= jitter

	delay := 5 * factor
	if delay < 0 {
		delay = 0
	}

	return Traffic{
		Level:        level,
		DelayMinutes: math.Round(delay*10) / 10,
		Congestion:   math.Round(factor*100) / 100,
	}
}

// EventsAt returns any special event active or imminent (within two hours)
// at the simulated timestamp. At most one event per simulated day.
func (p *Provider) EventsAt(t time.Time) []SpecialEvent {
	dayKey := t.Unix() / 86400
	rng := rand.New(rand.NewSource(p.seed ^ dayKey))

	if rng.Float64() >= 0.3 { // 30% of days host an event
		return nil
	}

	tmpl := sampleEvents[rng.Intn(len(sampleEvents))]
	startHour := 17 + rng.Intn(4)
	start := time.Date(t.Year(), t.Month(), t.Day(), startHour, 0, 0, 0, t.Location())
	end := start.Add(eventDurations[tmpl.EventType])

	ongoing := !t.Before(start) && !t.After(end)
	upcoming := start.After(t) && start.Sub(t) < 2*time.Hour
	if !ongoing && !upcoming {
		return nil
	}

	tmpl.Start = start
	tmpl.End = end
	return []SpecialEvent{tmpl}
}

// ConditionsAt returns the complete environment context at a timestamp.
func (p *Provider) ConditionsAt(t time.Time) Conditions {
	return Conditions{
		Weather: p.WeatherAt(t),
		Traffic: p.TrafficAt(t),
		Events:  p.EventsAt(t),
	}
}

// Mods converts conditions into action modifiers for the behavior engine.
func Mods(c Conditions) actors.Modifiers {
	m := actors.NoModifiers()

	w := c.Weather
	switch w.Condition {
	case "rainy":
		m.Scale(actors.ActionBrowse, 0.9)
		m.Scale(actors.ActionSendInvite, 0.8)
		m.Scale(actors.ActionMakeBooking, 1.1) // Indoor plans
	case "snow":
		m.Scale(actors.ActionBrowse, 0.7)
		m.Scale(actors.ActionSendInvite, 0.6)
		m.Scale(actors.ActionMakeBooking, 0.8)
	case "sunny":
		if w.Temperature >= 65 && w.Temperature <= 85 {
			m.Scale(actors.ActionBrowse, 1.1)
			m.Scale(actors.ActionSendInvite, 1.1)
			m.Scale(actors.ActionExpressInterest, 1.15)
		}
	}

	// Extreme temperatures suppress everything.
	if w.Temperature > 95 || w.Temperature < 20 {
		for i := range m {
			m[i] *= 0.8
		}
	}

	// Heavy traffic discourages going out but not planning ahead.
	if c.Traffic.Congestion > 1.5 {
		m.Scale(actors.ActionMakeBooking, 0.9)
		m.Scale(actors.ActionBrowse, 1.05)
	}

	// A nearby event pulls social plans.
	if len(c.Events) > 0 {
		m.Scale(actors.ActionSendInvite, 1.3)
		m.Scale(actors.ActionMakeBooking, 1.2)
	}

	return m
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
