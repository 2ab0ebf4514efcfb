// Package session keeps the per-session game state that recognition runs
// against: where the player stands, which objects and NPCs are around and
// which verbs, weapons and targets the game currently offers.
//
// The recognizer never writes here. It reads a [command.Vocabulary]
// snapshot through [ContextFor]; transports mutate state through a [Store].
package session

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Position is a point in the game world.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Object is something the player can interact with.
type Object struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Actions    []string       `json:"actions"`
	Properties map[string]any `json:"properties"`
}

// NPC is a non-player character the player can talk to.
type NPC struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	DialogOptions []string       `json:"dialog_options"`
	Properties    map[string]any `json:"properties"`
}

// ErrInvalid is wrapped by the Validate methods.
var ErrInvalid = errors.New("session: invalid")

// Validate reports a missing id, name or type.
func (o Object) Validate() error {
	switch {
	case o.ID == "":
		return fmt.Errorf("%w object: id is required", ErrInvalid)
	case o.Name == "":
		return fmt.Errorf("%w object: name is required", ErrInvalid)
	case o.Type == "":
		return fmt.Errorf("%w object: type is required", ErrInvalid)
	}
	return nil
}

// Validate reports a missing id or name.
func (n NPC) Validate() error {
	switch {
	case n.ID == "":
		return fmt.Errorf("%w npc: id is required", ErrInvalid)
	case n.Name == "":
		return fmt.Errorf("%w npc: name is required", ErrInvalid)
	}
	return nil
}

// State is the game state of one session.
type State struct {
	PlayerPosition Position `json:"player_position"`
	Objects        []Object `json:"available_objects"`
	NPCs           []NPC    `json:"available_npcs"`
	Commands       []string `json:"commands"`
	Interactions   []string `json:"interactions"`
	Weapons        []string `json:"weapons"`
	Targets        []string `json:"targets"`
}

// DefaultState returns the state a new session starts with.
func DefaultState() State {
	return State{
		Objects: []Object{
			{
				ID: "sword_1", Name: "sword", Type: "weapon",
				Actions:    []string{"take", "use", "examine"},
				Properties: map[string]any{"damage": 10.0, "weight": 5.0},
			},
			{
				ID: "potion_1", Name: "health potion", Type: "consumable",
				Actions:    []string{"take", "use", "examine"},
				Properties: map[string]any{"health_restore": 50.0},
			},
			{
				ID: "door_1", Name: "wooden door", Type: "interactive",
				Actions:    []string{"open", "close", "examine", "lock", "unlock"},
				Properties: map[string]any{"locked": true},
			},
		},
		NPCs: []NPC{
			{
				ID: "merchant_1", Name: "merchant",
				DialogOptions: []string{"greet", "trade", "farewell"},
				Properties:    map[string]any{"friendly": true, "items_for_sale": []any{"map", "torch"}},
			},
			{
				ID: "guard_1", Name: "guard",
				DialogOptions: []string{"greet", "quest", "farewell"},
				Properties:    map[string]any{"friendly": true, "has_quest": true},
			},
		},
		Commands:     []string{"go", "take", "use", "examine", "talk", "attack"},
		Interactions: []string{"open", "close", "activate", "push", "pull"},
		Weapons:      []string{"sword", "bow", "staff"},
		Targets:      []string{"goblin", "troll", "dragon"},
	}
}

// Clone returns a deep copy of s. Property maps are copied one level deep.
func (s State) Clone() State {
	out := s
	out.Objects = make([]Object, len(s.Objects))
	for i, o := range s.Objects {
		o.Actions = slices.Clone(o.Actions)
		o.Properties = maps.Clone(o.Properties)
		out.Objects[i] = o
	}
	out.NPCs = make([]NPC, len(s.NPCs))
	for i, n := range s.NPCs {
		n.DialogOptions = slices.Clone(n.DialogOptions)
		n.Properties = maps.Clone(n.Properties)
		out.NPCs[i] = n
	}
	out.Commands = slices.Clone(s.Commands)
	out.Interactions = slices.Clone(s.Interactions)
	out.Weapons = slices.Clone(s.Weapons)
	out.Targets = slices.Clone(s.Targets)
	return out
}

// PutObject adds o, replacing an object with the same ID in place.
func (s *State) PutObject(o Object) {
	for i := range s.Objects {
		if s.Objects[i].ID == o.ID {
			s.Objects[i] = o
			return
		}
	}
	s.Objects = append(s.Objects, o)
}

// RemoveObject drops the object with id. Unknown IDs are ignored.
func (s *State) RemoveObject(id string) {
	s.Objects = slices.DeleteFunc(s.Objects, func(o Object) bool { return o.ID == id })
}

// PutNPC adds n, replacing an NPC with the same ID in place.
func (s *State) PutNPC(n NPC) {
	for i := range s.NPCs {
		if s.NPCs[i].ID == n.ID {
			s.NPCs[i] = n
			return
		}
	}
	s.NPCs = append(s.NPCs, n)
}

// RemoveNPC drops the NPC with id. Unknown IDs are ignored.
func (s *State) RemoveNPC(id string) {
	s.NPCs = slices.DeleteFunc(s.NPCs, func(n NPC) bool { return n.ID == id })
}

// Vocabulary flattens s into the lists a recognition prompt is rendered
// with: object and NPC names plus every NPC's dialog options in NPC order.
func (s State) Vocabulary() command.Vocabulary {
	v := command.Vocabulary{
		Commands:     slices.Clone(s.Commands),
		Interactions: slices.Clone(s.Interactions),
		Weapons:      slices.Clone(s.Weapons),
		Targets:      slices.Clone(s.Targets),
	}
	for _, o := range s.Objects {
		v.Objects = append(v.Objects, o.Name)
	}
	for _, n := range s.NPCs {
		v.NPCs = append(v.NPCs, n.Name)
		v.DialogOptions = append(v.DialogOptions, n.DialogOptions...)
	}
	return v
}
