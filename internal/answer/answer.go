// Package answer decodes model replies. Replies are expected to carry a JSON
// object between <answer> and </answer>; everything else in the reply is
// ignored. Router replies are normalised into a [command.RouterDecision] and
// handler replies into a [command.ExtractedCommand].
package answer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies a decode failure.
type Kind int

const (
	// NoAnswerBlock means the reply contains no <answer>…</answer> block.
	NoAnswerBlock Kind = iota + 1
	// MalformedAnswer means the block content is not a JSON object.
	MalformedAnswer
)

func (k Kind) String() string {
	switch k {
	case NoAnswerBlock:
		return "no_answer_block"
	case MalformedAnswer:
		return "malformed_answer"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is matching against an [*Error].
var (
	ErrNoAnswerBlock   = errors.New("answer: no answer block")
	ErrMalformedAnswer = errors.New("answer: malformed answer")
)

// Error is returned by every decode function in this package.
type Error struct {
	Kind Kind
	// Err is the underlying decode error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "answer: " + e.Kind.String()
	}
	return fmt.Sprintf("answer: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNoAnswerBlock:
		return e.Kind == NoAnswerBlock
	case ErrMalformedAnswer:
		return e.Kind == MalformedAnswer
	}
	return false
}

// KindOf returns the kind of err, or 0 when err is not an [*Error].
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var blockRe = regexp.MustCompile(`(?s)<answer>(.*?)</answer>`)

// Block returns the content of the first answer block in raw.
func Block(raw string) (string, error) {
	m := blockRe.FindStringSubmatch(raw)
	if m == nil {
		return "", &Error{Kind: NoAnswerBlock}
	}
	return m[1], nil
}

// Extract locates the first answer block in raw and decodes it as a JSON
// object.
func Extract(raw string) (map[string]any, error) {
	block, err := Block(raw)
	if err != nil {
		return nil, err
	}
	content := stripMarkdown(block)
	if content == "" {
		return nil, &Error{Kind: MalformedAnswer, Err: errors.New("empty answer block")}
	}

	var v any
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, &Error{Kind: MalformedAnswer, Err: err}
	}
	if dec.More() {
		return nil, &Error{Kind: MalformedAnswer, Err: errors.New("trailing data after JSON value")}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &Error{Kind: MalformedAnswer, Err: fmt.Errorf("answer is %T, want object", v)}
	}
	return obj, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
