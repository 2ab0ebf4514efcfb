package command

// Vocabulary is the per-request context a recognition runs against. Each list
// is ordered; the prompt compiler renders it as a comma-separated string in
// that order. An empty list means "use the built-in default".
type Vocabulary struct {
	Commands      []string `json:"commands,omitempty"`
	Objects       []string `json:"objects,omitempty"`
	Interactions  []string `json:"interactions,omitempty"`
	Weapons       []string `json:"weapons,omitempty"`
	Targets       []string `json:"targets,omitempty"`
	NPCs          []string `json:"npcs,omitempty"`
	DialogOptions []string `json:"dialog_options,omitempty"`
}

// DefaultVocabulary returns the vocabulary used for lists a caller leaves
// empty.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Commands:      []string{"move", "interact", "attack", "talk"},
		Objects:       []string{"door", "key", "book", "chest"},
		Interactions:  []string{"open", "close", "take", "use", "examine"},
		Weapons:       []string{"sword", "bow", "axe"},
		Targets:       []string{"enemy", "monster", "target"},
		NPCs:          []string{"merchant", "guard", "villager"},
		DialogOptions: []string{"greet", "ask", "buy", "sell"},
	}
}

// WithDefaults returns a copy of v where every empty list is replaced by the
// corresponding list from [DefaultVocabulary]. Non-empty lists are kept as-is.
func (v Vocabulary) WithDefaults() Vocabulary {
	d := DefaultVocabulary()
	out := v
	fill := func(dst *[]string, def []string) {
		if len(*dst) == 0 {
			*dst = def
		}
	}
	fill(&out.Commands, d.Commands)
	fill(&out.Objects, d.Objects)
	fill(&out.Interactions, d.Interactions)
	fill(&out.Weapons, d.Weapons)
	fill(&out.Targets, d.Targets)
	fill(&out.NPCs, d.NPCs)
	fill(&out.DialogOptions, d.DialogOptions)
	return out
}
