package command

import "encoding/json"

// Payload is the structured, category-specific body of an extracted command.
// The set of implementations is closed: [MovementPayload],
// [ObjectInteractionPayload], [CombatPayload], [DialogPayload] and the
// catch-all [GenericPayload]. Consumers switch on the concrete type.
type Payload interface {
	// Category reports which command family produced the payload.
	Category() Category

	// Fields returns the payload as a flat JSON-ready mapping. Named fields
	// take precedence over keys in the payload's Extra map.
	Fields() map[string]any

	isPayload()
}

// MovementPayload is the extraction result for [Movement] commands.
type MovementPayload struct {
	Action    string
	Direction string
	// Distance is nil when the utterance names no distance.
	Distance *float64
	Target   string
	// Extra holds answer keys the model returned beyond the named fields.
	Extra map[string]any
}

// ObjectInteractionPayload is the extraction result for [ObjectInteraction]
// commands.
type ObjectInteractionPayload struct {
	Action string
	Object string
	// Target is the optional second object ("use key on door").
	Target string
	Extra  map[string]any
}

// CombatPayload is the extraction result for [Combat] commands.
type CombatPayload struct {
	Action string
	Target string
	Weapon string
	Extra  map[string]any
}

// DialogPayload is the extraction result for [Dialog] commands.
type DialogPayload struct {
	Action string
	NPC    string
	Option string
	// Text is free-form speech the player wants to say, if any.
	Text  string
	Extra map[string]any
}

// GenericPayload carries answers for categories without a dedicated shape,
// including categories added by future templates.
type GenericPayload struct {
	Kind   Category
	Action string
	Values map[string]any
}

func (MovementPayload) isPayload()          {}
func (ObjectInteractionPayload) isPayload() {}
func (CombatPayload) isPayload()            {}
func (DialogPayload) isPayload()            {}
func (GenericPayload) isPayload()           {}

// Category implements [Payload].
func (MovementPayload) Category() Category { return Movement }

// Category implements [Payload].
func (ObjectInteractionPayload) Category() Category { return ObjectInteraction }

// Category implements [Payload].
func (CombatPayload) Category() Category { return Combat }

// Category implements [Payload].
func (DialogPayload) Category() Category { return Dialog }

// Category implements [Payload].
func (p GenericPayload) Category() Category { return p.Kind }

// Fields implements [Payload].
func (p MovementPayload) Fields() map[string]any {
	m := withExtra(p.Extra)
	setString(m, "action", p.Action)
	setString(m, "direction", p.Direction)
	if p.Distance != nil {
		m["distance"] = *p.Distance
	}
	setString(m, "target", p.Target)
	return m
}

// Fields implements [Payload].
func (p ObjectInteractionPayload) Fields() map[string]any {
	m := withExtra(p.Extra)
	setString(m, "action", p.Action)
	setString(m, "object", p.Object)
	setString(m, "target", p.Target)
	return m
}

// Fields implements [Payload].
func (p CombatPayload) Fields() map[string]any {
	m := withExtra(p.Extra)
	setString(m, "action", p.Action)
	setString(m, "target", p.Target)
	setString(m, "weapon", p.Weapon)
	return m
}

// Fields implements [Payload].
func (p DialogPayload) Fields() map[string]any {
	m := withExtra(p.Extra)
	setString(m, "action", p.Action)
	setString(m, "npc", p.NPC)
	setString(m, "option", p.Option)
	setString(m, "text", p.Text)
	return m
}

// Fields implements [Payload].
func (p GenericPayload) Fields() map[string]any {
	m := withExtra(p.Values)
	setString(m, "action", p.Action)
	return m
}

// MarshalJSON implements json.Marshaler.
func (p MovementPayload) MarshalJSON() ([]byte, error) { return json.Marshal(p.Fields()) }

// MarshalJSON implements json.Marshaler.
func (p ObjectInteractionPayload) MarshalJSON() ([]byte, error) { return json.Marshal(p.Fields()) }

// MarshalJSON implements json.Marshaler.
func (p CombatPayload) MarshalJSON() ([]byte, error) { return json.Marshal(p.Fields()) }

// MarshalJSON implements json.Marshaler.
func (p DialogPayload) MarshalJSON() ([]byte, error) { return json.Marshal(p.Fields()) }

// MarshalJSON implements json.Marshaler.
func (p GenericPayload) MarshalJSON() ([]byte, error) { return json.Marshal(p.Fields()) }

func withExtra(extra map[string]any) map[string]any {
	m := make(map[string]any, len(extra)+4)
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func setString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
