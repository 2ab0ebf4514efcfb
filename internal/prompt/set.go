package prompt

import (
	"sort"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Set is an immutable snapshot of loaded templates. It always contains a
// [command.Base] template.
type Set struct {
	templates map[command.Category]*Template
	order     []command.Category
}

func newSet(templates map[command.Category]*Template) *Set {
	order := make([]command.Category, 0, len(templates))
	for c := range templates {
		order = append(order, c)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return &Set{templates: templates, order: order}
}

// NewSet builds a set from already parsed templates. Later templates replace
// earlier ones with the same category. The built-in router template is added
// when none of them is [command.Base].
func NewSet(templates ...*Template) *Set {
	m := make(map[command.Category]*Template, len(templates)+1)
	for _, t := range templates {
		if t != nil {
			m[t.Category] = t
		}
	}
	if _, ok := m[command.Base]; !ok {
		m[command.Base] = builtinBase()
	}
	return newSet(m)
}

// Get returns the template for c, or the base template when c has none.
func (s *Set) Get(c command.Category) *Template {
	if t, ok := s.templates[c]; ok {
		return t
	}
	return s.templates[command.Base]
}

// Lookup returns the template registered for exactly c.
func (s *Set) Lookup(c command.Category) (*Template, bool) {
	t, ok := s.templates[c]
	return t, ok
}

// Categories returns the categories in the set, sorted by name.
func (s *Set) Categories() []command.Category {
	out := make([]command.Category, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of templates in the set.
func (s *Set) Len() int { return len(s.templates) }
