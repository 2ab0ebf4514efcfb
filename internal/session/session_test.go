package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

func TestDefaultState_Vocabulary(t *testing.T) {
	t.Parallel()

	got := DefaultState().Vocabulary()
	want := command.Vocabulary{
		Commands:      []string{"go", "take", "use", "examine", "talk", "attack"},
		Objects:       []string{"sword", "health potion", "wooden door"},
		Interactions:  []string{"open", "close", "activate", "push", "pull"},
		Weapons:       []string{"sword", "bow", "staff"},
		Targets:       []string{"goblin", "troll", "dragon"},
		NPCs:          []string{"merchant", "guard"},
		DialogOptions: []string{"greet", "trade", "farewell", "greet", "quest", "farewell"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("vocabulary mismatch (-want +got):\n%s", diff)
	}
}

func TestState_Clone(t *testing.T) {
	t.Parallel()

	orig := DefaultState()
	c := orig.Clone()
	c.Objects[0].Actions[0] = "throw"
	c.Objects[0].Properties["damage"] = 99.0
	c.Commands[0] = "run"

	if orig.Objects[0].Actions[0] != "take" || orig.Objects[0].Properties["damage"] != 10.0 || orig.Commands[0] != "go" {
		t.Error("Clone shares memory with the original")
	}
}

func TestState_PutAndRemove(t *testing.T) {
	t.Parallel()

	st := DefaultState()
	st.PutObject(Object{ID: "door_1", Name: "iron door", Type: "interactive"})
	st.PutObject(Object{ID: "key_1", Name: "rusty key", Type: "item"})
	st.RemoveObject("sword_1")
	st.RemoveObject("no_such_thing")
	st.PutNPC(NPC{ID: "innkeeper_1", Name: "innkeeper", DialogOptions: []string{"greet"}})
	st.RemoveNPC("guard_1")

	if diff := cmp.Diff([]string{"health potion", "iron door", "rusty key"}, st.Vocabulary().Objects); diff != "" {
		t.Errorf("objects mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"merchant", "innkeeper"}, st.Vocabulary().NPCs); diff != "" {
		t.Errorf("npcs mismatch (-want +got):\n%s", diff)
	}
}

func TestMemStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	st, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(DefaultState(), st); diff != "" {
		t.Errorf("first Get is not the default state (-want +got):\n%s", diff)
	}

	if _, err := UpdatePosition(ctx, s, "s1", Position{X: 1, Y: 2, Z: 3}); err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}
	if _, err := AddObject(ctx, s, "s1", Object{ID: "chest_1", Name: "chest"}); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	if _, err := RemoveObject(ctx, s, "s1", "potion_1"); err != nil {
		t.Fatalf("RemoveObject: %v", err)
	}
	if _, err := AddNPC(ctx, s, "s1", NPC{ID: "bard_1", Name: "bard", DialogOptions: []string{"sing"}}); err != nil {
		t.Fatalf("AddNPC: %v", err)
	}
	st, err = RemoveNPC(ctx, s, "s1", "merchant_1")
	if err != nil {
		t.Fatalf("RemoveNPC: %v", err)
	}

	if st.PlayerPosition != (Position{X: 1, Y: 2, Z: 3}) {
		t.Errorf("position = %+v", st.PlayerPosition)
	}
	vocab, err := ContextFor(ctx, s, "s1")
	if err != nil {
		t.Fatalf("ContextFor: %v", err)
	}
	if diff := cmp.Diff([]string{"sword", "wooden door", "chest"}, vocab.Objects); diff != "" {
		t.Errorf("objects mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"greet", "quest", "farewell", "sing"}, vocab.DialogOptions); diff != "" {
		t.Errorf("dialog options mismatch (-want +got):\n%s", diff)
	}

	if err := s.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := s.Clear(ctx, "never-seen"); err != nil {
		t.Errorf("Clear unknown session: %v", err)
	}
	st, _ = s.Get(ctx, "s1")
	if diff := cmp.Diff(DefaultState(), st); diff != "" {
		t.Errorf("state after Clear is not the default (-want +got):\n%s", diff)
	}
}

func TestMemStore_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	st, _ := s.Get(ctx, "s1")
	st.Commands[0] = "mutated"
	again, _ := s.Get(ctx, "s1")
	if again.Commands[0] != "go" {
		t.Error("mutating a returned state changed the store")
	}
}

func TestMemStore_Put(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	in := State{Commands: []string{"fly"}}
	if err := s.Put(ctx, "s1", in); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ := s.Get(ctx, "s1")

	// Object and NPC lists come back as empty slices so they encode as [].
	want := State{Commands: []string{"fly"}, Objects: []Object{}, NPCs: []NPC{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	if err := s.Put(ctx, "", in); err == nil {
		t.Error("Put with empty id should fail")
	}
}

func TestMemStore_ConcurrentUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = AddObject(ctx, s, "shared", Object{ID: fmt.Sprintf("obj_%d", i), Name: "thing"})
		}()
	}
	wg.Wait()

	st, _ := s.Get(ctx, "shared")
	if got, want := len(st.Objects), len(DefaultState().Objects)+50; got != want {
		t.Errorf("objects = %d, want %d", got, want)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"object ok", Object{ID: "o1", Name: "lamp", Type: "item"}.Validate(), false},
		{"object without id", Object{Name: "lamp", Type: "item"}.Validate(), true},
		{"object without name", Object{ID: "o1", Type: "item"}.Validate(), true},
		{"object without type", Object{ID: "o1", Name: "lamp"}.Validate(), true},
		{"npc ok", NPC{ID: "n1", Name: "smith"}.Validate(), false},
		{"npc without id", NPC{Name: "smith"}.Validate(), true},
		{"npc without name", NPC{ID: "n1"}.Validate(), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if (tc.err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", tc.err, tc.wantErr)
			}
			if tc.err != nil && !errors.Is(tc.err, ErrInvalid) {
				t.Errorf("err = %v, want wrapped ErrInvalid", tc.err)
			}
		})
	}
}
