package recognizer

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/MrWong99/glyphcmd/internal/observe"
	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Snapper is a [Recognizer] that corrects near-miss names in a recognized
// command. Models on small hardware often echo a vocabulary entry with a
// typo ("dor" for "door"); Snapper replaces such a value with the closest
// entry of the matching vocabulary list when the edit distance is small
// enough. Values with no close entry are left alone.
type Snapper struct {
	next Recognizer
}

var _ Recognizer = (*Snapper)(nil)

// SnapToVocabulary wraps next with vocabulary snapping.
func SnapToVocabulary(next Recognizer) *Snapper {
	return &Snapper{next: next}
}

// Recognize implements [Recognizer].
func (s *Snapper) Recognize(ctx context.Context, text string, vocab command.Vocabulary) command.Result {
	res := s.next.Recognize(ctx, text, vocab)
	if !res.Recognized || res.Command == nil || res.Command.Payload == nil {
		return res
	}
	snapped, changed := snapPayload(res.Command.Payload, vocab.WithDefaults())
	if !changed {
		return res
	}
	observe.Logger(ctx).Debug("recognizer: snapped payload to vocabulary",
		"category", res.Command.Category.String(),
		"before", res.Command.Payload.Fields(),
		"after", snapped.Fields(),
	)
	details := *res.Command
	details.Payload = snapped
	res.Command = &details
	return res
}

// snapPayload returns p with its name fields snapped. The second result
// reports whether anything changed.
func snapPayload(p command.Payload, v command.Vocabulary) (command.Payload, bool) {
	changed := false
	snap := func(dst *string, lists ...[]string) {
		if got, ok := closest(*dst, lists...); ok && got != *dst {
			*dst = got
			changed = true
		}
	}

	switch p := p.(type) {
	case command.MovementPayload:
		snap(&p.Target, v.Objects, v.NPCs)
		return p, changed
	case command.ObjectInteractionPayload:
		snap(&p.Object, v.Objects)
		snap(&p.Target, v.Objects)
		return p, changed
	case command.CombatPayload:
		snap(&p.Target, v.Targets, v.NPCs)
		snap(&p.Weapon, v.Weapons)
		return p, changed
	case command.DialogPayload:
		snap(&p.NPC, v.NPCs)
		snap(&p.Option, v.DialogOptions)
		return p, changed
	}
	return p, false
}

// closest returns the vocabulary entry nearest to value. An exact
// case-insensitive match wins; otherwise the entry with the smallest edit
// distance within [distanceLimit] is chosen, earlier entries winning ties.
func closest(value string, lists ...[]string) (string, bool) {
	in := strings.ToLower(strings.TrimSpace(value))
	if in == "" {
		return "", false
	}
	best, bestDist := "", -1
	for _, list := range lists {
		for _, cand := range list {
			c := strings.ToLower(cand)
			if c == in {
				return cand, true
			}
			if len(in) < 3 {
				continue
			}
			d := levenshtein.ComputeDistance(in, c)
			if d > distanceLimit(len(c)) {
				continue
			}
			if bestDist < 0 || d < bestDist {
				best, bestDist = cand, d
			}
		}
	}
	return best, bestDist >= 0
}

// distanceLimit is the largest edit distance accepted for a candidate of
// the given length.
func distanceLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
