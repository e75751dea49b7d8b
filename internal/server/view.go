package server

import (
	"fmt"

	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/pipeline"
)

// AnalyzeResponse is the body returned by POST /analyze
type AnalyzeResponse struct {
	RunID       string           `json:"run_id,omitempty"`
	Username    string           `json:"username"`
	HasActivity bool             `json:"has_activity"`
	Message     string           `json:"message,omitempty"`
	Persona     *PersonaView     `json:"persona,omitempty"`
	Grounding   *model.Grounding `json:"grounding,omitempty"`
}

// PersonaView is the presentation form of a PersonaRecord
type PersonaView struct {
	Summary      string                      `json:"summary"`
	Traits       []string                    `json:"traits"`
	Interests    []string                    `json:"interests"`
	Motivations  []string                    `json:"motivations"`
	Frustrations []string                    `json:"frustrations"`
	Goals        []string                    `json:"goals"`
	KeyQuote     *string                     `json:"key_quote"`
	Citations    map[string][]model.Citation `json:"citations"`
	Degraded     bool                        `json:"degraded,omitempty"`
}

// NewAnalyzeResponse renders an outcome for the HTTP boundary
func NewAnalyzeResponse(outcome *model.Outcome) AnalyzeResponse {
	resp := AnalyzeResponse{
		RunID:       outcome.RunID,
		Username:    outcome.Username,
		HasActivity: outcome.HasActivity,
	}
	if !outcome.HasActivity || outcome.Persona == nil {
		resp.Message = outcome.Message
		return resp
	}
	resp.Persona = NewPersonaView(outcome.Persona)
	resp.Grounding = outcome.Grounding
	return resp
}

// NewPersonaView renders a record. Absent scales are left out of the lists.
func NewPersonaView(record *model.PersonaRecord) *PersonaView {
	d := record.Demographics
	view := &PersonaView{
		Summary: fmt.Sprintf("A %s %s who is an %s.",
			orDefault(d.Age, "unknown age"),
			orDefault(d.Occupation, "unknown occupation"),
			orDefault(d.Archetype, "unknown archetype"),
		),
		Traits:       []string{},
		Interests:    nonNil(record.BehaviorHabits),
		Motivations:  []string{},
		Frustrations: nonNil(record.Frustrations),
		Goals:        nonNil(record.GoalsNeeds),
		KeyQuote:     record.KeyQuote,
		Citations:    record.Citations,
		Degraded:     record.Degraded,
	}
	if view.Citations == nil {
		view.Citations = map[string][]model.Citation{}
	}
	for _, t := range pipeline.Traits(record) {
		view.Traits = append(view.Traits, fmt.Sprintf("%s: %d/10", t.Label, t.Value))
	}
	for _, m := range pipeline.Motivations(record) {
		view.Motivations = append(view.Motivations, fmt.Sprintf("%s: %d/10", m.Label, m.Value))
	}
	return view
}

func orDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
