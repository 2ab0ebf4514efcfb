package answer

import (
	"github.com/MrWong99/glyphcmd/pkg/command"
)

// metaKeys are answer keys that never end up in a payload's Extra map.
var metaKeys = []string{"confidence", "category", "command_type", "alternatives", "rationale", "reasoning"}

// ParseCommand decodes a handler reply for category c. A [command.Base]
// reply (the scan strategy's catch-all template) resolves its category from
// the answer itself, the same way router replies are normalised. Confidence
// is clamped into [0, 1] and is 0 when the answer gives none.
func (p *Parser) ParseCommand(raw string, c command.Category) (command.ExtractedCommand, error) {
	obj, err := Extract(raw)
	if err != nil {
		return command.ExtractedCommand{}, err
	}

	if c == command.Base {
		c = p.routerFromObject(obj).Category
	}
	conf, _ := confidence(obj)
	return command.ExtractedCommand{
		Category:   c,
		Confidence: conf,
		Payload:    buildPayload(c, obj),
	}, nil
}

func buildPayload(c command.Category, obj map[string]any) command.Payload {
	used := make(map[string]bool, len(obj))
	for _, k := range metaKeys {
		used[k] = true
	}
	take := func(keys ...string) string {
		s, k := str(obj, keys...)
		if k != "" {
			used[k] = true
		}
		return s
	}

	var p command.Payload
	switch c {
	case command.Movement:
		mp := command.MovementPayload{
			Action:    take("action", "command", "verb"),
			Direction: take("direction"),
			Target:    take("target", "destination"),
		}
		if v, ok := obj["distance"]; ok {
			if f, ok := number(v); ok {
				mp.Distance = &f
				used["distance"] = true
			}
		}
		mp.Extra = extra(obj, used)
		p = mp
	case command.ObjectInteraction:
		op := command.ObjectInteractionPayload{
			Action: take("action", "command", "verb", "interaction"),
			Object: take("object", "item"),
			Target: take("target", "with"),
		}
		op.Extra = extra(obj, used)
		p = op
	case command.Combat:
		cp := command.CombatPayload{
			Action: take("action", "command", "verb"),
			Target: take("target", "enemy"),
			Weapon: take("weapon"),
		}
		cp.Extra = extra(obj, used)
		p = cp
	case command.Dialog:
		dp := command.DialogPayload{
			Action: take("action", "command", "verb"),
			NPC:    take("npc", "character", "target"),
			Option: take("option", "dialog_option", "topic"),
			Text:   take("text", "message", "phrase"),
		}
		dp.Extra = extra(obj, used)
		p = dp
	default:
		gp := command.GenericPayload{
			Kind:   c,
			Action: take("action", "command", "verb"),
		}
		gp.Values = extra(obj, used)
		p = gp
	}
	return p
}

// extra returns the keys of obj not yet consumed, or nil when there are
// none.
func extra(obj map[string]any, used map[string]bool) map[string]any {
	var out map[string]any
	for k, v := range obj {
		if used[k] || v == nil {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = plain(v)
	}
	return out
}
