package answer

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

// DefaultConvertedConfidence is the confidence given to a router answer that
// named a verb instead of a category and carried no confidence of its own.
const DefaultConvertedConfidence = 0.7

// DefaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a fuzzy
// verb match.
const DefaultFuzzyThreshold = 0.92

// verbKeys are the answer fields consulted, in order, when a router answer
// has no category field.
var verbKeys = []string{"command", "action", "verb"}

// Parser decodes model replies. The zero value is ready to use and performs
// exact verb lookups only.
type Parser struct {
	fuzzy          bool
	fuzzyThreshold float64
}

// Option configures a [Parser].
type Option func(*Parser)

// WithFuzzyVerbs enables Jaro-Winkler matching for verbs missing from the
// verb table. A non-positive threshold selects [DefaultFuzzyThreshold].
func WithFuzzyVerbs(threshold float64) Option {
	return func(p *Parser) {
		p.fuzzy = true
		if threshold <= 0 {
			threshold = DefaultFuzzyThreshold
		}
		p.fuzzyThreshold = threshold
	}
}

// NewParser returns a [Parser] configured by opts.
func NewParser(opts ...Option) *Parser {
	p := &Parser{}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ParseRouter decodes a router reply.
//
// An answer with a "category" field is taken as-is; unrecognised names are
// kept as new categories. Otherwise the first of "command", "action" and
// "verb" is mapped through the verb table, the decision is marked
// Converted, and a missing confidence defaults to
// [DefaultConvertedConfidence]. A verb the table does not know yields
// [command.Unknown].
func (p *Parser) ParseRouter(raw string) (command.RouterDecision, error) {
	obj, err := Extract(raw)
	if err != nil {
		return command.RouterDecision{}, err
	}
	return p.routerFromObject(obj), nil
}

func (p *Parser) routerFromObject(obj map[string]any) command.RouterDecision {
	d := command.RouterDecision{Raw: obj}
	conf, hasConf := confidence(obj)
	d.Confidence = conf

	if name, _ := str(obj, "category", "command_type", "type"); name != "" {
		d.Category = canonical(name)
	} else if verb, _ := str(obj, verbKeys...); verb != "" {
		d.Category = p.categoryForVerb(verb)
		d.Converted = true
		if !hasConf {
			d.Confidence = DefaultConvertedConfidence
		}
	} else {
		d.Category = command.Unknown
	}

	d.Alternatives = alternatives(obj["alternatives"], d.Category)
	d.Rationale, _ = str(obj, "rationale", "reasoning", "explanation")
	return d
}

// categoryForVerb maps a verb, or the first word of a phrase, to a category.
func (p *Parser) categoryForVerb(verb string) command.Category {
	v := strings.ToLower(strings.TrimSpace(verb))
	if c, ok := verbs[v]; ok {
		return c
	}
	if fields := strings.Fields(v); len(fields) > 1 {
		if c, ok := verbs[fields[0]]; ok {
			return c
		}
		v = fields[0]
	}
	if c, ok := verbs[strings.ReplaceAll(v, "_", " ")]; ok {
		return c
	}
	if p.fuzzy {
		return p.fuzzyVerb(v)
	}
	return command.Unknown
}

func (p *Parser) fuzzyVerb(v string) command.Category {
	var (
		best      = command.Unknown
		bestKey   string
		bestScore float64
	)
	for known, c := range verbs {
		score := matchr.JaroWinkler(v, known, false)
		if score > bestScore || (score == bestScore && known < bestKey) {
			best, bestKey, bestScore = c, known, score
		}
	}
	if bestScore < p.fuzzyThreshold {
		return command.Unknown
	}
	return best
}

// canonical maps a category name to a [command.Category]. Names that are not
// known aliases become new categories.
func canonical(name string) command.Category {
	if c, ok := command.ParseCategory(name); ok {
		return c
	}
	return command.Category(strings.ToLower(strings.TrimSpace(name)))
}

// alternatives canonicalises the alternative-category list, dropping
// unknown names, the router category itself and duplicates.
func alternatives(v any, chosen command.Category) []command.Category {
	out := []command.Category{}
	seen := map[command.Category]bool{chosen: true}
	for _, name := range stringList(v) {
		c, ok := command.ParseCategory(name)
		if !ok || c == command.Unknown || c == command.Base || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
