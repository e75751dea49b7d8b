package model

import "time"

// UnknownUsername is used when no username can be attributed to a record
const UnknownUsername = "unknown"

// CitationRef is one citation attempt made by the model, before verification
type CitationRef struct {
	ID      string `json:"id"`
	Excerpt string `json:"excerpt,omitempty"`
}

// AttributeClaim is a model-asserted value for one persona field
type AttributeClaim struct {
	Field  string        `json:"field"`
	Values []string      `json:"values"`
	Refs   []CitationRef `json:"refs,omitempty"`
}

// Citation is a claim-to-evidence link verified against the run's content set.
// It holds copies, so it stays valid after the content set is discarded.
type Citation struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Excerpt   string    `json:"excerpt"`
	Community string    `json:"community"`
	Timestamp time.Time `json:"timestamp"`
	Permalink string    `json:"permalink"`
}

// Demographics holds the scalar demographic fields; nil means absent
type Demographics struct {
	Age        *string `json:"age,omitempty"`
	Occupation *string `json:"occupation,omitempty"`
	Status     *string `json:"status,omitempty"`
	Location   *string `json:"location,omitempty"`
	Tier       *string `json:"tier,omitempty"`
	Archetype  *string `json:"archetype,omitempty"`
}

// Personality holds the four 1-10 personality scales
type Personality struct {
	IntrovertExtrovert *int `json:"introvert_extrovert,omitempty"`
	IntuitionSensing   *int `json:"intuition_sensing,omitempty"`
	FeelingThinking    *int `json:"feeling_thinking,omitempty"`
	PerceivingJudging  *int `json:"perceiving_judging,omitempty"`
}

// Motivations holds the six 1-10 motivation scales
type Motivations struct {
	Convenience  *int `json:"convenience,omitempty"`
	Wellness     *int `json:"wellness,omitempty"`
	Speed        *int `json:"speed,omitempty"`
	Preferences  *int `json:"preferences,omitempty"`
	Comfort      *int `json:"comfort,omitempty"`
	DietaryNeeds *int `json:"dietary_needs,omitempty"`
}

// PersonaRecord is the final structured output describing the analyzed user
type PersonaRecord struct {
	Username     string       `json:"username"`
	Demographics Demographics `json:"demographics"`
	Personality  Personality  `json:"personality"`
	Motivations  Motivations  `json:"motivations"`

	BehaviorHabits []string `json:"behavior_habits"`
	Frustrations   []string `json:"frustrations"`
	GoalsNeeds     []string `json:"goals_needs"`

	KeyQuote *string `json:"key_quote,omitempty"`

	// Citations maps field name to resolved citations; every entry is verified
	Citations map[string][]Citation `json:"citations"`

	// Degraded marks the placeholder produced when the model output was unusable
	Degraded bool `json:"degraded,omitempty"`
}

// UnknownPersona returns the degraded-but-valid placeholder record
func UnknownPersona() *PersonaRecord {
	return &PersonaRecord{
		Username:       UnknownUsername,
		BehaviorHabits: []string{},
		Frustrations:   []string{},
		GoalsNeeds:     []string{},
		Citations:      map[string][]Citation{},
		Degraded:       true,
	}
}

// Field names shared by the prompt schema, the mapper and the citation resolver
const (
	FieldAge                = "age"
	FieldOccupation         = "occupation"
	FieldStatus             = "status"
	FieldLocation           = "location"
	FieldTier               = "tier"
	FieldArchetype          = "archetype"
	FieldIntrovertExtrovert = "introvert_extrovert"
	FieldIntuitionSensing   = "intuition_sensing"
	FieldFeelingThinking    = "feeling_thinking"
	FieldPerceivingJudging  = "perceiving_judging"
	FieldConvenience        = "convenience"
	FieldWellness           = "wellness"
	FieldSpeed              = "speed"
	FieldPreferences        = "preferences"
	FieldComfort            = "comfort"
	FieldDietaryNeeds       = "dietary_needs"
	FieldBehaviorHabits     = "behavior_habits"
	FieldFrustrations       = "frustrations"
	FieldGoalsNeeds         = "goals_needs"
	FieldKeyQuote           = "key_quote"
)

var (
	DemographicFields = []string{FieldAge, FieldOccupation, FieldLocation, FieldStatus, FieldTier, FieldArchetype}
	PersonalityFields = []string{FieldIntrovertExtrovert, FieldIntuitionSensing, FieldFeelingThinking, FieldPerceivingJudging}
	MotivationFields  = []string{FieldConvenience, FieldWellness, FieldSpeed, FieldPreferences, FieldComfort, FieldDietaryNeeds}
	ListFields        = []string{FieldBehaviorHabits, FieldFrustrations, FieldGoalsNeeds}
)

// CitedFields lists every persona field in schema order
func CitedFields() []string {
	fields := make([]string, 0, 20)
	fields = append(fields, DemographicFields...)
	fields = append(fields, PersonalityFields...)
	fields = append(fields, MotivationFields...)
	fields = append(fields, ListFields...)
	fields = append(fields, FieldKeyQuote)
	return fields
}

// Outcome is the result of one analysis run
type Outcome struct {
	RunID       string         `json:"run_id,omitempty"`
	Username    string         `json:"username"`
	HasActivity bool           `json:"has_activity"`
	Message     string         `json:"message,omitempty"`
	Persona     *PersonaRecord `json:"persona,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	Model       string         `json:"model,omitempty"`
	Posts       int            `json:"posts"`
	Comments    int            `json:"comments"`
	Diagnostics *Diagnostics   `json:"diagnostics,omitempty"`
	Grounding   *Grounding     `json:"grounding,omitempty"`
}

// Diagnostics records how the model output was interpreted
type Diagnostics struct {
	PromptChars     int    `json:"prompt_chars"`
	PromptTruncated bool   `json:"prompt_truncated"`
	FailedStage     string `json:"failed_stage,omitempty"` // repair/mapping stage that degraded the record
	Claims          int    `json:"claims"`                 // populated persona fields
	AttemptedCites  int    `json:"attempted_citations"`
	ResolvedCites   int    `json:"resolved_citations"`
	UncitedClaims   int    `json:"uncited_claims"`
}
