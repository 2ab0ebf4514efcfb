package command

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"movement", Movement, true},
		{"  Movement ", Movement, true},
		{"movement_commands", Movement, true},
		{"object-interaction", ObjectInteraction, true},
		{"object_interactions", ObjectInteraction, true},
		{"interaction", ObjectInteraction, true},
		{"COMBAT", Combat, true},
		{"dialogue", Dialog, true},
		{"dialog_commands", Dialog, true},
		{"base_commands", Base, true},
		{"unknown", Unknown, true},
		{"teleport", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseCategory(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseCategory(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCategory_IsHandler(t *testing.T) {
	t.Parallel()
	for _, c := range Handlers {
		if !c.IsHandler() {
			t.Errorf("%s.IsHandler() = false, want true", c)
		}
	}
	for _, c := range []Category{Base, Unknown, "trade"} {
		if c.IsHandler() {
			t.Errorf("%s.IsHandler() = true, want false", c)
		}
	}
}

func TestVocabulary_WithDefaults(t *testing.T) {
	t.Parallel()

	v := Vocabulary{Objects: []string{"lantern"}}
	got := v.WithDefaults()

	want := DefaultVocabulary()
	want.Objects = []string{"lantern"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WithDefaults() mismatch (-want +got):\n%s", diff)
	}
	if v.Commands != nil {
		t.Error("WithDefaults mutated the receiver")
	}
}

func TestResult_MarshalJSON_NullsForAbsentValues(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Result{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"recognized":false,"command":null,"confidence":0,"error":null}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestResult_MarshalJSON_HandlerResult(t *testing.T) {
	t.Parallel()

	dist := 3.0
	r := Result{
		Recognized: true,
		Confidence: 0.7,
		Command: &Details{
			Stage:    StageHandler,
			Category: Movement,
			Payload: MovementPayload{
				Action:    "go",
				Direction: "north",
				Distance:  &dist,
				Extra:     map[string]any{"speed": "fast", "action": "ignored"},
			},
		},
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]any{
		"recognized": true,
		"confidence": 0.7,
		"error":      nil,
		"command": map[string]any{
			"stage":        "handler",
			"category":     "movement",
			"alternatives": []any{},
			"converted":    false,
			"payload": map[string]any{
				"action":    "go",
				"direction": "north",
				"distance":  3.0,
				"speed":     "fast",
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRouter(t *testing.T) {
	t.Parallel()

	raw := map[string]any{"command": "attack", "confidence": json.Number("0.2")}
	d := FromRouter(RouterDecision{Category: Combat, Confidence: 0.2, Converted: true, Raw: raw})
	if d.Stage != StageRouter {
		t.Errorf("Stage = %q, want %q", d.Stage, StageRouter)
	}
	if d.Alternatives == nil {
		t.Error("Alternatives is nil, want empty slice")
	}
	if d.Payload != nil {
		t.Errorf("Payload = %v, want nil", d.Payload)
	}
	if !d.Converted {
		t.Error("Converted = false, want true")
	}
	if diff := cmp.Diff(raw, d.Raw); diff != "" {
		t.Errorf("Raw mismatch (-want +got):\n%s", diff)
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"stage":"router","category":"combat","alternatives":[],"converted":true,"raw":{"command":"attack","confidence":0.2}}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestHandlerFailedMessage(t *testing.T) {
	t.Parallel()
	got := HandlerFailedMessage(ObjectInteraction)
	want := "Failed to process command with object_interaction handler"
	if got != want {
		t.Errorf("HandlerFailedMessage = %q, want %q", got, want)
	}
}

func TestGenericPayload_Category(t *testing.T) {
	t.Parallel()
	p := GenericPayload{Kind: "trade", Action: "barter", Values: map[string]any{"item": "rope"}}
	if p.Category() != "trade" {
		t.Errorf("Category = %q, want trade", p.Category())
	}
	if diff := cmp.Diff(map[string]any{"action": "barter", "item": "rope"}, p.Fields()); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
}
