package repair

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Failure stages reported by MalformedResponseError
const (
	StageExtract = "extract"
	StageParse   = "parse"
)

// ErrMalformedResponse is matched by every MalformedResponseError
var ErrMalformedResponse = errors.New("malformed model response")

// MalformedResponseError reports raw model text that could not be repaired.
// Raw is kept for diagnostics.
type MalformedResponseError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", ErrMalformedResponse, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s (%s)", ErrMalformedResponse, e.Stage)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformedResponse) match
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// Repairer turns untrusted model text into a single JSON object
type Repairer struct {
	passes []Pass
}

// NewRepairer creates a repairer; with no passes it uses DefaultPasses
func NewRepairer(passes ...Pass) *Repairer {
	if len(passes) == 0 {
		passes = DefaultPasses()
	}
	return &Repairer{passes: passes}
}

// Passes returns the configured pass names in order
func (r *Repairer) Passes() []string {
	names := make([]string, len(r.passes))
	for i, p := range r.passes {
		names[i] = p.Name
	}
	return names
}

// Repair applies every pass, extracts the first balanced object and checks
// that it parses. It never panics; failures are *MalformedResponseError.
func (r *Repairer) Repair(raw string) (string, error) {
	text := raw
	for _, p := range r.passes {
		text = p.Apply(text)
	}

	obj, ok := ExtractObject(text)
	if !ok {
		return "", &MalformedResponseError{Stage: StageExtract, Raw: raw}
	}
	if !json.Valid([]byte(obj)) {
		var v any
		err := json.Unmarshal([]byte(obj), &v)
		return "", &MalformedResponseError{Stage: StageParse, Raw: raw, Err: err}
	}
	return obj, nil
}

// Parse repairs raw and decodes the object. Numbers are kept as json.Number.
func (r *Repairer) Parse(raw string) (map[string]any, error) {
	obj, err := r.Repair(raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedResponseError{Stage: StageParse, Raw: raw, Err: err}
	}
	return doc, nil
}

// ExtractObject returns the first balanced top-level {...} span. Braces inside
// string literals are ignored.
func ExtractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
