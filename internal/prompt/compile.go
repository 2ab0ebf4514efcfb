package prompt

import (
	"fmt"
	"strings"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Fallback returns the minimal prompt used when a template cannot be
// rendered. It still asks for an answer block so the extractor can work on
// the reply.
func Fallback(utterance string) string {
	return fmt.Sprintf("Analyze this command: \"%s\". Respond with JSON in %s tags.", utterance, ExampleOpen)
}

// Compile renders t for one utterance. Empty vocabulary lists are replaced
// by [command.DefaultVocabulary]. Compile never fails and never returns an
// empty prompt: a nil template, a hand-built one whose body does not parse,
// or a rendering that is blank yields [Fallback].
func Compile(t *Template, utterance string, vocab command.Vocabulary) string {
	if t == nil {
		return Fallback(utterance)
	}
	segs := t.segments
	if segs == nil {
		var err error
		segs, err = parseSegments(escapeExamples(t.Body))
		if err != nil || len(segs) == 0 {
			return Fallback(utterance)
		}
	}

	values := bindings(utterance, vocab.WithDefaults())
	var b strings.Builder
	b.Grow(len(t.Body) + len(utterance) + 256)
	for _, s := range segs {
		if s.placeholder == "" {
			b.WriteString(s.text)
			continue
		}
		b.WriteString(values[s.placeholder])
	}
	if strings.TrimSpace(b.String()) == "" {
		return Fallback(utterance)
	}
	return b.String()
}

func bindings(utterance string, v command.Vocabulary) map[string]string {
	join := func(list []string) string { return strings.Join(list, ", ") }
	return map[string]string{
		UserCommand:   utterance,
		Commands:      join(v.Commands),
		Objects:       join(v.Objects),
		Interactions:  join(v.Interactions),
		Weapons:       join(v.Weapons),
		Targets:       join(v.Targets),
		NPCs:          join(v.NPCs),
		DialogOptions: join(v.DialogOptions),
	}
}
