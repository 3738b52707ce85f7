// Scenario tables — globally-active modifier sets representing demo
// situations. Exactly one scenario is active at a time.
package actors

// Scenario names a globally-active behavior situation.
type Scenario string

const (
	ScenarioNormal         Scenario = "normal"
	ScenarioLunchRush      Scenario = "lunch_rush"
	ScenarioFridayNight    Scenario = "friday_night"
	ScenarioWeekendBrunch  Scenario = "weekend_brunch"
	ScenarioConcertNight   Scenario = "concert_night"
	ScenarioNewUserOnboard Scenario = "new_user_onboarding"
)

// ScenarioInfo carries display metadata for the control surface.
type ScenarioInfo struct {
	Name        Scenario `json:"name"`
	Description string   `json:"description"`
}

// scenarioModifiers maps each scenario to its action multipliers.
// The normal scenario is the identity.
var scenarioModifiers = map[Scenario]map[Action]float64{
	ScenarioNormal: {},
	ScenarioLunchRush: {
		ActionBrowse:          1.5,
		ActionMakeBooking:     2.0,
		ActionExpressInterest: 1.3,
	},
	ScenarioFridayNight: {
		ActionSendInvite:   2.0,
		ActionCheckFriends: 1.5,
		ActionMakeBooking:  1.3,
	},
	ScenarioWeekendBrunch: {
		ActionBrowse:          1.4,
		ActionExpressInterest: 1.5,
		ActionSendInvite:      1.2,
	},
	ScenarioConcertNight: {
		ActionSendInvite:  1.5,
		ActionMakeBooking: 1.5,
		ActionBrowse:      1.3,
	},
	ScenarioNewUserOnboard: {
		ActionBrowse:          2.0,
		ActionCheckFriends:    1.5,
		ActionExpressInterest: 1.3,
	},
}

// Scenarios lists every scenario with its description, in a fixed order.
func Scenarios() []ScenarioInfo {
	return []ScenarioInfo{
		{ScenarioNormal, "Baseline behavior with no situational pressure"},
		{ScenarioLunchRush, "Midday surge of quick browsing and bookings"},
		{ScenarioFridayNight, "High social activity, invites and group plans"},
		{ScenarioWeekendBrunch, "Leisurely browsing and interest around brunch"},
		{ScenarioConcertNight, "Pre-event dining plans near a venue"},
		{ScenarioNewUserOnboard, "Fresh users exploring the platform heavily"},
	}
}

// KnownScenario reports whether the name is a valid scenario.
func KnownScenario(name string) bool {
	_, ok := scenarioModifiers[Scenario(name)]
	return ok
}

// ScenarioMods returns the modifier set for a scenario as a dense vector.
func ScenarioMods(s Scenario) Modifiers {
	m := NoModifiers()
	for action, factor := range scenarioModifiers[s] {
		m[action] = factor
	}
	return m
}
