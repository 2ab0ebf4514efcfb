package answer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

func ptr(f float64) *float64 { return &f }

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		category command.Category
		want     command.ExtractedCommand
	}{
		{
			name:     "movement",
			raw:      `<answer>{"action": "go", "direction": "north", "distance": "3", "confidence": 0.85, "speed": "fast"}</answer>`,
			category: command.Movement,
			want: command.ExtractedCommand{
				Category:   command.Movement,
				Confidence: 0.85,
				Payload: command.MovementPayload{
					Action: "go", Direction: "north", Distance: ptr(3),
					Extra: map[string]any{"speed": "fast"},
				},
			},
		},
		{
			name:     "non-finite confidence counts as missing",
			raw:      `<answer>{"action": "attack", "target": "wolf", "confidence": "NaN"}</answer>`,
			category: command.Combat,
			want: command.ExtractedCommand{
				Category: command.Combat,
				Payload:  command.CombatPayload{Action: "attack", Target: "wolf"},
			},
		},
		{
			name:     "infinite distance is kept as an extra field",
			raw:      `<answer>{"action": "go", "distance": "+Inf", "confidence": 0.8}</answer>`,
			category: command.Movement,
			want: command.ExtractedCommand{
				Category:   command.Movement,
				Confidence: 0.8,
				Payload: command.MovementPayload{
					Action: "go",
					Extra:  map[string]any{"distance": "+Inf"},
				},
			},
		},
		{
			name:     "object interaction",
			raw:      `<answer>{"interaction": "open", "object": "door", "confidence": 0.9}</answer>`,
			category: command.ObjectInteraction,
			want: command.ExtractedCommand{
				Category:   command.ObjectInteraction,
				Confidence: 0.9,
				Payload:    command.ObjectInteractionPayload{Action: "open", Object: "door"},
			},
		},
		{
			name:     "combat",
			raw:      `<answer>{"action": "attack", "enemy": "wolf", "weapon": "sword", "confidence": 0.7, "count": 2}</answer>`,
			category: command.Combat,
			want: command.ExtractedCommand{
				Category:   command.Combat,
				Confidence: 0.7,
				Payload: command.CombatPayload{
					Action: "attack", Target: "wolf", Weapon: "sword",
					Extra: map[string]any{"count": 2.0},
				},
			},
		},
		{
			name:     "dialog",
			raw:      `<answer>{"npc": "merchant", "option": "buy", "text": "a rope please", "confidence": 0.6}</answer>`,
			category: command.Dialog,
			want: command.ExtractedCommand{
				Category:   command.Dialog,
				Confidence: 0.6,
				Payload:    command.DialogPayload{NPC: "merchant", Option: "buy", Text: "a rope please"},
			},
		},
		{
			name:     "generic category",
			raw:      `<answer>{"action": "barter", "item": "rope", "confidence": 0.5}</answer>`,
			category: "trade",
			want: command.ExtractedCommand{
				Category:   "trade",
				Confidence: 0.5,
				Payload: command.GenericPayload{
					Kind: "trade", Action: "barter",
					Values: map[string]any{"item": "rope"},
				},
			},
		},
		{
			name:     "base resolves category from verb",
			raw:      `<answer>{"command": "take", "object": "key", "confidence": 0.8}</answer>`,
			category: command.Base,
			want: command.ExtractedCommand{
				Category:   command.ObjectInteraction,
				Confidence: 0.8,
				Payload:    command.ObjectInteractionPayload{Action: "take", Object: "key"},
			},
		},
		{
			name:     "missing confidence is zero",
			raw:      `<answer>{"action": "go"}</answer>`,
			category: command.Movement,
			want: command.ExtractedCommand{
				Category: command.Movement,
				Payload:  command.MovementPayload{Action: "go"},
			},
		},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.ParseCommand(tt.raw, tt.category)
			if err != nil {
				t.Fatalf("ParseCommand: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseCommand mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	t.Parallel()

	p := NewParser()
	if _, err := p.ParseCommand("go north", command.Movement); KindOf(err) != NoAnswerBlock {
		t.Errorf("err = %v, want NoAnswerBlock", err)
	}
	if _, err := p.ParseCommand("<answer>[1,2]</answer>", command.Movement); KindOf(err) != MalformedAnswer {
		t.Errorf("err = %v, want MalformedAnswer", err)
	}
}
