package mapper

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ppiankov/persona/internal/model"
)

// ErrMapping is matched by every MappingError
var ErrMapping = errors.New("persona mapping failed")

// MappingError reports an unexpected failure while building a record from
// otherwise parsed data
type MappingError struct {
	Cause any
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: %v", ErrMapping, e.Cause)
}

// Is makes errors.Is(err, ErrMapping) match
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

// Result is a mapped record with its unverified citation attempts.
// Record.Citations is empty until the attempts are resolved.
type Result struct {
	Record *model.PersonaRecord

	// Attempts maps field name to the citation attempts made by the model,
	// in the order given
	Attempts map[string][]model.CitationRef

	// Claims lists every field that carries a value, in schema order
	Claims []model.AttributeClaim
}

// AttemptCount returns the total number of citation attempts
func (r *Result) AttemptCount() int {
	n := 0
	for _, refs := range r.Attempts {
		n += len(refs)
	}
	return n
}

// Map builds the most complete record obtainable from doc. Missing, extra and
// malformed fields never fail; only a panic while mapping is reported, as a
// *MappingError. An empty username becomes model.UnknownUsername.
func Map(doc map[string]any, username string) (*Result, error) {
	return guard(func() *Result { return build(doc, username) })
}

// guard converts a panic in fn into a *MappingError
func guard(fn func() *Result) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &MappingError{Cause: r}
		}
	}()
	return fn(), nil
}

func build(doc map[string]any, username string) *Result {
	if username == "" {
		username = model.UnknownUsername
	}

	root := asObject(doc)
	record := &model.PersonaRecord{
		Username:  username,
		Citations: map[string][]model.Citation{},
	}

	// Fields the model put at the top level instead of inside their group
	// are still picked up.
	demo := root.group("demographics", "demographic")
	record.Demographics = model.Demographics{
		Age:        firstString(demo, root, model.FieldAge),
		Occupation: firstString(demo, root, model.FieldOccupation),
		Status:     firstString(demo, root, model.FieldStatus),
		Location:   firstString(demo, root, model.FieldLocation),
		Tier:       firstString(demo, root, model.FieldTier),
		Archetype:  firstString(demo, root, model.FieldArchetype),
	}

	pers := root.group("personality", "personality_traits")
	record.Personality = model.Personality{
		IntrovertExtrovert: firstScale(pers, root, model.FieldIntrovertExtrovert),
		IntuitionSensing:   firstScale(pers, root, model.FieldIntuitionSensing),
		FeelingThinking:    firstScale(pers, root, model.FieldFeelingThinking),
		PerceivingJudging:  firstScale(pers, root, model.FieldPerceivingJudging),
	}

	mot := root.group("motivations", "motivation")
	record.Motivations = model.Motivations{
		Convenience:  firstScale(mot, root, model.FieldConvenience),
		Wellness:     firstScale(mot, root, model.FieldWellness),
		Speed:        firstScale(mot, root, model.FieldSpeed),
		Preferences:  firstScale(mot, root, model.FieldPreferences),
		Comfort:      firstScale(mot, root, model.FieldComfort),
		DietaryNeeds: firstScale(mot, root, model.FieldDietaryNeeds),
	}

	record.BehaviorHabits = root.list(model.FieldBehaviorHabits)
	record.Frustrations = root.list(model.FieldFrustrations)
	record.GoalsNeeds = root.list(model.FieldGoalsNeeds)
	record.KeyQuote = root.str(model.FieldKeyQuote)

	attempts := parseCitations(root.group("citations", "citation"))

	return &Result{
		Record:   record,
		Attempts: attempts,
		Claims:   Claims(record, attempts),
	}
}

func firstString(group, root object, key string) *string {
	if s := group.str(key); s != nil {
		return s
	}
	return root.str(key)
}

func firstScale(group, root object, key string) *int {
	if n := group.scale(key); n != nil {
		return n
	}
	return root.scale(key)
}

// Claims lists the valued fields of record with their citation attempts,
// in model.CitedFields order
func Claims(record *model.PersonaRecord, attempts map[string][]model.CitationRef) []model.AttributeClaim {
	var claims []model.AttributeClaim
	for _, field := range model.CitedFields() {
		values := FieldValues(record, field)
		if len(values) == 0 {
			continue
		}
		claims = append(claims, model.AttributeClaim{
			Field:  field,
			Values: values,
			Refs:   attempts[field],
		})
	}
	return claims
}

// FieldValues returns the value(s) of one named field as strings; an absent
// field yields nil
func FieldValues(record *model.PersonaRecord, field string) []string {
	str := func(s *string) []string {
		if s == nil {
			return nil
		}
		return []string{*s}
	}
	scale := func(n *int) []string {
		if n == nil {
			return nil
		}
		return []string{strconv.Itoa(*n)}
	}

	d, p, m := record.Demographics, record.Personality, record.Motivations
	switch field {
	case model.FieldAge:
		return str(d.Age)
	case model.FieldOccupation:
		return str(d.Occupation)
	case model.FieldStatus:
		return str(d.Status)
	case model.FieldLocation:
		return str(d.Location)
	case model.FieldTier:
		return str(d.Tier)
	case model.FieldArchetype:
		return str(d.Archetype)
	case model.FieldIntrovertExtrovert:
		return scale(p.IntrovertExtrovert)
	case model.FieldIntuitionSensing:
		return scale(p.IntuitionSensing)
	case model.FieldFeelingThinking:
		return scale(p.FeelingThinking)
	case model.FieldPerceivingJudging:
		return scale(p.PerceivingJudging)
	case model.FieldConvenience:
		return scale(m.Convenience)
	case model.FieldWellness:
		return scale(m.Wellness)
	case model.FieldSpeed:
		return scale(m.Speed)
	case model.FieldPreferences:
		return scale(m.Preferences)
	case model.FieldComfort:
		return scale(m.Comfort)
	case model.FieldDietaryNeeds:
		return scale(m.DietaryNeeds)
	case model.FieldBehaviorHabits:
		return record.BehaviorHabits
	case model.FieldFrustrations:
		return record.Frustrations
	case model.FieldGoalsNeeds:
		return record.GoalsNeeds
	case model.FieldKeyQuote:
		return str(record.KeyQuote)
	}
	return nil
}

// parseCitations reads the citations group. Each field maps to a list whose
// entries are either bare id strings or objects carrying an id and excerpt.
// A single entry given without the surrounding list is accepted too.
func parseCitations(group object) map[string][]model.CitationRef {
	attempts := make(map[string][]model.CitationRef, len(group))

	fields := make([]string, 0, len(group))
	for field := range group {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		entries, ok := group[field].([]any)
		if !ok {
			entries = []any{group[field]}
		}

		var refs []model.CitationRef
		for _, entry := range entries {
			if ref, ok := parseRef(entry); ok {
				refs = append(refs, ref)
			}
		}
		if len(refs) > 0 {
			attempts[field] = refs
		}
	}
	return attempts
}

func parseRef(entry any) (model.CitationRef, bool) {
	if id := coerceString(entry); id != nil {
		return model.CitationRef{ID: *id}, true
	}

	obj := asObject(entry)
	if obj == nil {
		return model.CitationRef{}, false
	}
	id := firstNonEmpty(obj, "id", "post_id", "comment_id", "item_id", "source_id")
	if id == "" {
		return model.CitationRef{}, false
	}
	excerpt := firstNonEmpty(obj, "excerpt", "content_snippet", "snippet", "content", "quote", "text")
	return model.CitationRef{ID: id, Excerpt: excerpt}, true
}

func firstNonEmpty(obj object, keys ...string) string {
	for _, k := range keys {
		if s := obj.str(k); s != nil {
			return *s
		}
	}
	return ""
}
