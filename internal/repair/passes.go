package repair

import (
	"regexp"
	"strings"
)

// Pass is one named, pure text transform applied before extraction
type Pass struct {
	Name  string
	Apply func(string) string
}

// DefaultPasses is the ordered repair chain. New malformed-input cases are
// handled by adding one pass here plus one test.
func DefaultPasses() []Pass {
	return []Pass{
		{Name: "strip_code_fences", Apply: StripCodeFences},
		{Name: "strip_line_comments", Apply: StripLineComments},
		{Name: "strip_parenthetical_notes", Apply: StripParentheticalNotes},
		{Name: "quote_sentinels", Apply: QuoteSentinels},
		{Name: "strip_trailing_commas", Apply: StripTrailingCommas},
		{Name: "escape_control_chars", Apply: EscapeControlChars},
	}
}

var (
	fencePattern         = regexp.MustCompile("```[A-Za-z0-9_+-]*[ \t]*")
	sentinelPattern      = regexp.MustCompile(`(?i)(:\s*)(not mentioned|not specified|none|n/a)(\s*(?:[,}\]\r\n]|$))`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// StripCodeFences removes markdown fence delimiters, opening ones with their
// language tag
func StripCodeFences(s string) string {
	return fencePattern.ReplaceAllString(s, "")
}

// StripLineComments removes // comments that appear outside string literals.
// Prose before the first '{' is left alone so URLs there survive.
func StripLineComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var lx lexer
	for i := 0; i < len(s); i++ {
		if lx.step(s[i]) && lx.started && s[i] == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return strings.TrimRight(b.String(), " \t")
}

// StripParentheticalNotes removes "(...)" annotations found outside string
// literals on a single line, such as `"age": 25 (estimated),`
func StripParentheticalNotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var lx lexer
	for i := 0; i < len(s); i++ {
		if lx.step(s[i]) && lx.started && s[i] == '(' {
			end := strings.IndexAny(s[i:], ")\n")
			if end > 0 && s[i+end] == ')' {
				trimmed := strings.TrimRight(b.String(), " \t")
				b.Reset()
				b.WriteString(trimmed)
				i += end
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// QuoteSentinels wraps bare sentinel values (Not specified, None, N/A, ...)
// in quotes so they parse as strings
func QuoteSentinels(s string) string {
	return mapOutsideStrings(s, func(seg string) string {
		return sentinelPattern.ReplaceAllString(seg, `${1}"${2}"${3}`)
	})
}

// StripTrailingCommas removes commas directly before a closing brace or bracket
func StripTrailingCommas(s string) string {
	return mapOutsideStrings(s, func(seg string) string {
		return trailingCommaPattern.ReplaceAllString(seg, "$1")
	})
}

// EscapeControlChars escapes raw newlines and tabs inside string literals
func EscapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var lx lexer
	for i := 0; i < len(s); i++ {
		ch := s[i]
		lx.step(ch)
		if lx.inString && ch != '"' {
			switch ch {
			case '\n':
				b.WriteString(`\n`)
				continue
			case '\r':
				b.WriteString(`\r`)
				continue
			case '\t':
				b.WriteString(`\t`)
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// mapOutsideStrings applies fn to every run of text outside string literals
func mapOutsideStrings(s string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(s))

	var lx lexer
	start := 0
	outside := true
	for i := 0; i < len(s); i++ {
		o := lx.step(s[i])
		if o == outside {
			continue
		}
		if outside {
			b.WriteString(fn(s[start:i]))
		} else {
			b.WriteString(s[start:i])
		}
		start = i
		outside = o
	}
	if outside {
		b.WriteString(fn(s[start:]))
	} else {
		b.WriteString(s[start:])
	}
	return b.String()
}

// lexer tracks JSON string literals byte by byte. Literals are only recognised
// after the first '{', so stray quotes in leading prose cannot invert the state.
type lexer struct {
	started  bool
	inString bool
	escaped  bool
}

// step consumes ch and reports whether it lies outside a string literal.
// Quote characters count as part of the literal.
func (l *lexer) step(ch byte) bool {
	if !l.started {
		if ch == '{' {
			l.started = true
		}
		return true
	}
	if l.inString {
		switch {
		case l.escaped:
			l.escaped = false
		case ch == '\\':
			l.escaped = true
		case ch == '"':
			l.inString = false
		}
		return false
	}
	if ch == '"' {
		l.inString = true
		return false
	}
	return true
}
