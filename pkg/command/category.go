// Package command defines the shared types of the command recognition
// pipeline: command categories, the vocabulary a recognition runs against,
// the structured payloads extracted per category, and the final [Result]
// returned to callers.
//
// These types are the lingua franca between the template store, the prompt
// compiler, the response extractor, the recognizers and every transport that
// exposes them. They carry no behaviour beyond validation and JSON shaping.
package command

import "strings"

// Category names a command family. Every category (except [Unknown]) selects
// one prompt template.
type Category string

const (
	// Base is the router category. Its template asks the model which family a
	// command belongs to, and it is the fallback template for any category
	// without one of its own.
	Base Category = "base"

	// Movement covers locomotion: go, run, walk, jump.
	Movement Category = "movement"

	// ObjectInteraction covers manipulating world objects: open, take, use.
	ObjectInteraction Category = "object_interaction"

	// Combat covers attacks and defensive actions.
	Combat Category = "combat"

	// Dialog covers talking to NPCs.
	Dialog Category = "dialog"

	// Unknown is produced when a model answer names no recognisable category.
	Unknown Category = "unknown"
)

// Handlers lists the categories that have a dedicated extraction template,
// in the order the scan strategy evaluates them. [Base] is evaluated last.
var Handlers = []Category{Movement, ObjectInteraction, Combat, Dialog}

var categoryAliases = map[string]Category{
	"base":                Base,
	"base_commands":       Base,
	"router":              Base,
	"movement":            Movement,
	"movement_commands":   Movement,
	"move":                Movement,
	"object_interaction":  ObjectInteraction,
	"object_interactions": ObjectInteraction,
	"interaction":         ObjectInteraction,
	"interactions":        ObjectInteraction,
	"combat":              Combat,
	"combat_commands":     Combat,
	"dialog":              Dialog,
	"dialog_commands":     Dialog,
	"dialogue":            Dialog,
	"unknown":             Unknown,
}

// ParseCategory canonicalises s into a [Category]. Case, surrounding
// whitespace, hyphens and the legacy file-stem spellings are accepted. The
// second return value is false when s names no known category.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	c, ok := categoryAliases[key]
	return c, ok
}

// String implements fmt.Stringer.
func (c Category) String() string { return string(c) }

// IsHandler reports whether c has a dedicated extraction stage, i.e. it is
// one of [Handlers].
func (c Category) IsHandler() bool {
	switch c {
	case Movement, ObjectInteraction, Combat, Dialog:
		return true
	}
	return false
}
