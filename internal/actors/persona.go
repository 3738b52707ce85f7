// Persona templates — the behavioral archetypes that give each actor a
// distinct action profile. Each persona multiplies the base action weights.
package actors

// Persona names the seven behavioral archetypes.
type Persona string

const (
	PersonaSocialButterfly  Persona = "social_butterfly"
	PersonaFoodieExplorer   Persona = "foodie_explorer"
	PersonaRoutineRegular   Persona = "routine_regular"
	PersonaEventOrganizer   Persona = "event_organizer"
	PersonaSpontaneousDiner Persona = "spontaneous_diner"
	PersonaBusyProfessional Persona = "busy_professional"
	PersonaBudgetConscious  Persona = "budget_conscious"
)

// PersonaTemplate defines how a persona shifts base behavior.
type PersonaTemplate struct {
	// Modifiers multiply the base weight of each listed action.
	Modifiers map[Action]float64

	// Sociability shapes invite acceptance on top of the 70% base rate.
	// Range -0.2 to +0.2.
	Sociability float64

	// FavoredCuisines seed the initial preference vector.
	FavoredCuisines []string

	// ActivityRange bounds the initial activity score draw.
	ActivityRange [2]float64

	// PriceRange is the starting comfortable spend per head.
	PriceRange [2]float64
}

// personaTemplates maps each persona to its behavior template.
var personaTemplates = map[Persona]PersonaTemplate{
	PersonaSocialButterfly: {
		Modifiers: map[Action]float64{
			ActionCheckFriends: 1.5,
			ActionSendInvite:   1.5,
		},
		Sociability:     0.2,
		FavoredCuisines: []string{"brunch", "asian", "mediterranean"},
		ActivityRange:   [2]float64{0.6, 0.95},
		PriceRange:      [2]float64{25, 70},
	},
	PersonaFoodieExplorer: {
		Modifiers: map[Action]float64{
			ActionBrowse:          1.3,
			ActionExpressInterest: 1.3,
		},
		Sociability:     0.05,
		FavoredCuisines: []string{"asian", "seafood", "mediterranean"},
		ActivityRange:   [2]float64{0.5, 0.9},
		PriceRange:      [2]float64{30, 90},
	},
	PersonaEventOrganizer: {
		Modifiers: map[Action]float64{
			ActionSendInvite:  2.0,
			ActionMakeBooking: 1.5,
		},
		Sociability:     0.15,
		FavoredCuisines: []string{"american", "italian", "steakhouse"},
		ActivityRange:   [2]float64{0.6, 0.9},
		PriceRange:      [2]float64{30, 80},
	},
	PersonaSpontaneousDiner: {
		Modifiers: map[Action]float64{
			ActionMakeBooking: 1.5,
		},
		Sociability:     0.1,
		FavoredCuisines: []string{"american", "asian", "comfort"},
		ActivityRange:   [2]float64{0.4, 0.85},
		PriceRange:      [2]float64{20, 60},
	},
	PersonaRoutineRegular: {
		Modifiers: map[Action]float64{
			ActionBrowse: 0.7,
		},
		Sociability:     0.0,
		FavoredCuisines: []string{"italian", "american", "comfort"},
		ActivityRange:   [2]float64{0.3, 0.6},
		PriceRange:      [2]float64{20, 50},
	},
	PersonaBusyProfessional: {
		Modifiers: map[Action]float64{
			ActionBrowse:      0.5,
			ActionMakeBooking: 1.2,
		},
		Sociability:     -0.1,
		FavoredCuisines: []string{"salad", "asian", "mediterranean"},
		ActivityRange:   [2]float64{0.2, 0.5},
		PriceRange:      [2]float64{25, 75},
	},
	PersonaBudgetConscious: {
		Modifiers: map[Action]float64{
			ActionBrowse:          1.2,
			ActionExpressInterest: 0.8,
		},
		Sociability:     0.0,
		FavoredCuisines: []string{"comfort", "american", "salad"},
		ActivityRange:   [2]float64{0.3, 0.7},
		PriceRange:      [2]float64{10, 35},
	},
}

// AllPersonas lists the personas in a fixed order for deterministic
// assignment draws.
var AllPersonas = []Persona{
	PersonaSocialButterfly,
	PersonaFoodieExplorer,
	PersonaRoutineRegular,
	PersonaEventOrganizer,
	PersonaSpontaneousDiner,
	PersonaBusyProfessional,
	PersonaBudgetConscious,
}

// KnownPersona reports whether the name is a valid persona.
func KnownPersona(name string) bool {
	_, ok := personaTemplates[Persona(name)]
	return ok
}

// Template returns the behavior template for a persona, falling back to the
// routine regular for unknown values.
func Template(p Persona) PersonaTemplate {
	if tmpl, ok := personaTemplates[p]; ok {
		return tmpl
	}
	return personaTemplates[PersonaRoutineRegular]
}
