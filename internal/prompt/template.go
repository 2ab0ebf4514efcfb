// Package prompt loads prompt templates from disk and compiles them into
// concrete prompts for the inference backend.
//
// Templates use {name} placeholders; {{ and }} are literal braces. Regions
// between <answer> and </answer> are example spans: braces inside them are
// literal unless they wrap a known placeholder name. A template is parsed
// once when it is loaded, so compiling a loaded template never fails.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Placeholder names understood by the compiler.
const (
	UserCommand   = "user_command"
	Commands      = "commands"
	Objects       = "objects"
	Interactions  = "interactions"
	Weapons       = "weapons"
	Targets       = "targets"
	NPCs          = "npcs"
	DialogOptions = "dialog_options"
)

// Placeholders lists every known placeholder name.
var Placeholders = []string{UserCommand, Commands, Objects, Interactions, Weapons, Targets, NPCs, DialogOptions}

// Example span delimiters. The response extractor looks for the same tags.
const (
	ExampleOpen  = "<answer>"
	ExampleClose = "</answer>"
)

func isPlaceholder(name string) bool {
	for _, p := range Placeholders {
		if p == name {
			return true
		}
	}
	return false
}

// UnknownPlaceholderError reports a {name} reference to a placeholder the
// compiler cannot fill.
type UnknownPlaceholderError struct {
	Name string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("prompt: unknown placeholder %q", e.Name)
}

// SyntaxError reports malformed brace usage that cannot be attributed to a
// single placeholder name.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("prompt: syntax error at offset %d: %s", e.Offset, e.Msg)
}

// segment is either literal text or a placeholder reference.
type segment struct {
	text        string
	placeholder string
}

// Template is a parsed prompt template. Templates returned by [Parse] and
// [Load] are immutable.
type Template struct {
	// Category selects the template.
	Category command.Category

	// Source is the file the template was loaded from; empty for built-ins.
	Source string

	// Body is the template text after any load-time repair.
	Body string

	// Required lists the placeholders the body must reference.
	Required []string

	// Informational metadata. None of it affects compilation.
	Description          string
	Version              string
	Languages            []string
	ConfidenceGuidelines map[string]any

	// Repaired lists placeholder names stripped from the body at load time.
	Repaired []string

	segments []segment
}

// Parse builds a template from raw text. The user_command placeholder is
// always required. Parse does not repair anything; see [ParseRepair].
func Parse(category command.Category, body string, required []string) (*Template, error) {
	req := normaliseRequired(required)
	for _, r := range req {
		if !isPlaceholder(r) {
			return nil, &UnknownPlaceholderError{Name: r}
		}
	}
	segs, err := parseSegments(escapeExamples(body))
	if err != nil {
		return nil, err
	}
	if missing := missingPlaceholders(segs, req); len(missing) > 0 {
		return nil, &MissingPlaceholderError{Names: missing}
	}
	return &Template{
		Category: category,
		Body:     body,
		Required: req,
		segments: segs,
	}, nil
}

// ParseRepair is [Parse] with load-time repair: every unknown placeholder is
// stripped from the non-example part of the body, and parsing is retried.
// Syntax errors and missing required placeholders are not repairable.
func ParseRepair(category command.Category, body string, required []string) (*Template, error) {
	var stripped []string
	seen := make(map[string]bool)
	for {
		t, err := Parse(category, body, required)
		if err == nil {
			t.Repaired = stripped
			return t, nil
		}
		var unknown *UnknownPlaceholderError
		if !errors.As(err, &unknown) || seen[unknown.Name] || isPlaceholder(unknown.Name) {
			return nil, err
		}
		seen[unknown.Name] = true
		next := stripPlaceholder(body, unknown.Name)
		if next == body {
			return nil, err
		}
		body = next
		stripped = append(stripped, unknown.Name)
	}
}

// MissingPlaceholderError reports required placeholders absent from a body.
type MissingPlaceholderError struct {
	Names []string
}

func (e *MissingPlaceholderError) Error() string {
	return fmt.Sprintf("prompt: missing required placeholders %s", strings.Join(e.Names, ", "))
}

func normaliseRequired(required []string) []string {
	out := []string{UserCommand}
	for _, r := range required {
		r = strings.TrimSpace(r)
		if r == "" || r == UserCommand {
			continue
		}
		out = append(out, r)
	}
	return out
}

func missingPlaceholders(segs []segment, required []string) []string {
	present := make(map[string]bool)
	for _, s := range segs {
		if s.placeholder != "" {
			present[s.placeholder] = true
		}
	}
	var missing []string
	for _, r := range required {
		if !present[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

// escapeExamples is the first rendering pass. Inside every example span all
// braces are doubled, then known placeholders are un-doubled again so they
// are still substituted. An unterminated span runs to the end of the text.
func escapeExamples(body string) string {
	var b strings.Builder
	b.Grow(len(body) + len(body)/8)
	forEachSpan(body, func(s string, example bool) {
		if !example {
			b.WriteString(s)
			return
		}
		s = strings.ReplaceAll(s, "{", "{{")
		s = strings.ReplaceAll(s, "}", "}}")
		for _, p := range Placeholders {
			s = strings.ReplaceAll(s, "{{"+p+"}}", "{"+p+"}")
		}
		b.WriteString(s)
	})
	return b.String()
}

// forEachSpan splits body into alternating non-example and example parts.
// The tags themselves belong to the non-example parts.
func forEachSpan(body string, fn func(s string, example bool)) {
	for body != "" {
		open := strings.Index(body, ExampleOpen)
		if open < 0 {
			fn(body, false)
			return
		}
		open += len(ExampleOpen)
		fn(body[:open], false)
		body = body[open:]

		end := strings.Index(body, ExampleClose)
		if end < 0 {
			fn(body, true)
			return
		}
		fn(body[:end], true)
		body = body[end:]
	}
}

// parseSegments is the second rendering pass.
func parseSegments(s string) ([]segment, error) {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(s[i+1:], "{}")
			if end < 0 {
				return nil, &SyntaxError{Offset: i, Msg: "unclosed '{'"}
			}
			end += i + 1
			if s[end] == '{' {
				return nil, &SyntaxError{Offset: end, Msg: "nested '{' in placeholder"}
			}
			name := strings.TrimSpace(s[i+1 : end])
			if name == "" {
				return nil, &SyntaxError{Offset: i, Msg: "empty placeholder"}
			}
			if !isPlaceholder(name) {
				return nil, &UnknownPlaceholderError{Name: name}
			}
			flush()
			segs = append(segs, segment{placeholder: name})
			i = end
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &SyntaxError{Offset: i, Msg: "single '}' outside placeholder"}
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segs, nil
}

// stripPlaceholder removes every brace group mentioning name from the
// non-example parts of body.
func stripPlaceholder(body, name string) string {
	re := regexp.MustCompile(`\{[^{}]*` + regexp.QuoteMeta(name) + `[^{}]*\}`)
	var b strings.Builder
	forEachSpan(body, func(s string, example bool) {
		if example {
			b.WriteString(s)
			return
		}
		b.WriteString(re.ReplaceAllString(s, ""))
	})
	return b.String()
}
