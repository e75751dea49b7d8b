package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ppiankov/persona/internal/model"
)

const (
	bannerWidth = 60
	ruleWidth   = 20
	dateLayout  = "2006-01-02 15:04:05"
)

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// traitPoles names the low and high end of each personality scale
var traitPoles = map[string][2]string{
	model.FieldIntrovertExtrovert: {"Introvert", "Extrovert"},
	model.FieldIntuitionSensing:   {"Intuition", "Sensing"},
	model.FieldFeelingThinking:    {"Feeling", "Thinking"},
	model.FieldPerceivingJudging:  {"Perceiving", "Judging"},
}

// Renderer writes persona reports
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// ReportFilename returns "<handle>_persona_<provider>.txt"
func ReportFilename(handle, provider string) string {
	name := fmt.Sprintf("%s_persona_%s.txt", handle, provider)
	return unsafeFilename.ReplaceAllString(name, "_")
}

// RenderText formats a record as the human-readable report, citations
// listed under the field they support
func (r *Renderer) RenderText(record *model.PersonaRecord) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	section := func(title string) {
		line("%s", title)
		line("%s", strings.Repeat("-", ruleWidth))
	}
	cite := func(field string) {
		r.writeCitations(&b, record.Citations[field])
	}

	line("%s", strings.Repeat("=", bannerWidth))
	line("USER PERSONA: %s", strings.ToUpper(record.Username))
	line("%s", strings.Repeat("=", bannerWidth))
	line("")

	section("DEMOGRAPHICS")
	d := record.Demographics
	for _, f := range []struct {
		label string
		field string
		value *string
	}{
		{"Age", model.FieldAge, d.Age},
		{"Occupation", model.FieldOccupation, d.Occupation},
		{"Status", model.FieldStatus, d.Status},
		{"Location", model.FieldLocation, d.Location},
		{"Tier", model.FieldTier, d.Tier},
		{"Archetype", model.FieldArchetype, d.Archetype},
	} {
		if f.value != nil {
			line("%s: %s", f.label, *f.value)
			cite(f.field)
		}
	}
	line("")

	section("PERSONALITY TRAITS")
	for _, t := range Traits(record) {
		poles := traitPoles[t.Field]
		line("%s: %s (%d/10)", t.Label, Leaning(t.Value, poles[0], poles[1]), t.Value)
		cite(t.Field)
	}
	line("")

	section("MOTIVATIONS")
	for _, m := range Motivations(record) {
		line("%s: %d/10", m.Label, m.Value)
		cite(m.Field)
	}
	line("")

	for _, list := range []struct {
		title string
		field string
		items []string
	}{
		{"BEHAVIOR & HABITS", model.FieldBehaviorHabits, record.BehaviorHabits},
		{"FRUSTRATIONS", model.FieldFrustrations, record.Frustrations},
		{"GOALS & NEEDS", model.FieldGoalsNeeds, record.GoalsNeeds},
	} {
		if len(list.items) == 0 {
			continue
		}
		section(list.title)
		for _, item := range list.items {
			line("• %s", item)
		}
		cite(list.field)
		line("")
	}

	if record.KeyQuote != nil {
		section("KEY QUOTE")
		line("\"%s\"", *record.KeyQuote)
		cite(model.FieldKeyQuote)
		line("")
	}

	return b.String()
}

func (r *Renderer) writeCitations(b *strings.Builder, citations []model.Citation) {
	if len(citations) == 0 {
		return
	}
	b.WriteString("   Citations:\n")
	for _, c := range citations {
		date := "unknown date"
		if !c.Timestamp.IsZero() {
			date = c.Timestamp.UTC().Format(dateLayout)
		}
		fmt.Fprintf(b, "   - [%s] %s r/%s\n", c.Kind.Label(), date, c.Community)
		fmt.Fprintf(b, "     %s\n", c.Excerpt)
		fmt.Fprintf(b, "     %s\n", c.Permalink)
		b.WriteByte('\n')
	}
}

// WriteText writes the text report to path
func (r *Renderer) WriteText(record *model.PersonaRecord, path string) error {
	return writeFile(path, []byte(r.RenderText(record)))
}

// WriteJSON writes the outcome as indented JSON to path
func (r *Renderer) WriteJSON(outcome *model.Outcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeFile(path, data)
}

// RenderSummary prints a short summary of the outcome
func (r *Renderer) RenderSummary(w io.Writer, outcome *model.Outcome) {
	_, _ = fmt.Fprintln(w, "\nPersona Summary:")
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 30))
	_, _ = fmt.Fprintf(w, "User: %s\n", outcome.Username)
	if !outcome.HasActivity {
		_, _ = fmt.Fprintln(w, outcome.Message)
		return
	}

	record := outcome.Persona
	d := record.Demographics
	_, _ = fmt.Fprintf(w, "Age: %s\n", orUnknown(d.Age))
	_, _ = fmt.Fprintf(w, "Occupation: %s\n", orUnknown(d.Occupation))
	_, _ = fmt.Fprintf(w, "Archetype: %s\n", orUnknown(d.Archetype))
	if record.KeyQuote != nil {
		_, _ = fmt.Fprintf(w, "Key Quote: \"%s\"\n", *record.KeyQuote)
	}
	if diag := outcome.Diagnostics; diag != nil {
		_, _ = fmt.Fprintf(w, "Citations: %d verified of %d attempted\n", diag.ResolvedCites, diag.AttemptedCites)
		if diag.FailedStage != "" {
			_, _ = fmt.Fprintf(w, "⚠️  Model output unusable (%s stage); report is a placeholder\n", diag.FailedStage)
		}
	}
	if g := outcome.Grounding; g != nil {
		_, _ = fmt.Fprintf(w, "Grounding: %d/100 (%s confidence)\n", g.Index, g.Confidence)
		for _, sig := range g.Signals {
			if sig.Severity != model.SeverityInfo {
				_, _ = fmt.Fprintf(w, "  [%s] %s\n", sig.Severity, sig.Description)
			}
		}
	}
}

// Leaning names the side of a 1-10 scale a value falls on; above 5 is high
func Leaning(value int, low, high string) string {
	if value > 5 {
		return high
	}
	return low
}

// Scale is one labelled 1-10 value
type Scale struct {
	Label string
	Field string
	Value int
}

// Motivations returns the present motivation scales in schema order
func Motivations(record *model.PersonaRecord) []Scale {
	m := record.Motivations
	var out []Scale
	for _, s := range []struct {
		label string
		field string
		value *int
	}{
		{"Convenience", model.FieldConvenience, m.Convenience},
		{"Wellness", model.FieldWellness, m.Wellness},
		{"Speed", model.FieldSpeed, m.Speed},
		{"Preferences", model.FieldPreferences, m.Preferences},
		{"Comfort", model.FieldComfort, m.Comfort},
		{"Dietary Needs", model.FieldDietaryNeeds, m.DietaryNeeds},
	} {
		if s.value != nil {
			out = append(out, Scale{Label: s.label, Field: s.field, Value: *s.value})
		}
	}
	return out
}

// Traits returns the present personality scales in schema order
func Traits(record *model.PersonaRecord) []Scale {
	p := record.Personality
	var out []Scale
	for _, s := range []struct {
		label string
		field string
		value *int
	}{
		{"Introvert/Extrovert", model.FieldIntrovertExtrovert, p.IntrovertExtrovert},
		{"Intuition/Sensing", model.FieldIntuitionSensing, p.IntuitionSensing},
		{"Feeling/Thinking", model.FieldFeelingThinking, p.FeelingThinking},
		{"Perceiving/Judging", model.FieldPerceivingJudging, p.PerceivingJudging},
	} {
		if s.value != nil {
			out = append(out, Scale{Label: s.label, Field: s.field, Value: *s.value})
		}
	}
	return out
}

func orUnknown(s *string) string {
	if s == nil {
		return "Unknown"
	}
	return *s
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
